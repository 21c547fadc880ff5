package tenants

import "time"

// Tenant is one registered identity realm.
type Tenant struct {
	ID          string    `json:"id"`   // uuid
	Name        string    `json:"name"` // realm name, unique (acme)
	Description string    `json:"description"`
	Issuer      string    `json:"issuer"` // realm issuer URL at the provider
	CreatedAt   time.Time `json:"createdAt"`
}
