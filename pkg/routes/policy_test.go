package routes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  "GET /api/tenants": [admin]
  "GET /api/reports": [admin, auditor]
  "GET /api/open": []
`), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, p.For("GET /api/tenants"))
	assert.Equal(t, []string{"admin", "auditor"}, p.For("GET /api/reports"))
	assert.Empty(t, p.For("GET /api/open"))
	assert.Nil(t, p.For("GET /api/undeclared"))
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, p.For("POST /api/tenants"))
	assert.Nil(t, p.For("GET /api/whoami"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes: ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
