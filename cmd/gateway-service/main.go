// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realmgate/internal/gateway"
	"realmgate/pkg/auth"
	"realmgate/pkg/config"
	"realmgate/pkg/db"
	"realmgate/pkg/keys"
	"realmgate/pkg/logger"
	"realmgate/pkg/middleware"
	"realmgate/pkg/routes"
	"realmgate/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var registry tenants.Registry
	if pool != nil {
		registry = tenants.NewPostgresRegistry(pool, log)
		if err := tenants.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
	} else {
		registry = tenants.NewMemoryRegistry(log)
	}

	policy, err := routes.Load(cfg.RoutePolicyFile)
	if err != nil {
		log.Fatalw("route policy", "err", err)
	}

	resolver := keys.NewResolver(cfg.IdPTimeout, log)
	keyCache := keys.NewCache(resolver)
	guard := middleware.NewGuard(keyCache, log)
	authSvc := auth.NewService(cfg.IdPServer, cfg.IdPTimeout, log, rdb, cfg.IntrospectionTTL)

	app := gateway.New(log, authSvc, guard, keyCache, registry, policy)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	app.Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr, "idp", cfg.IdPServer)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
