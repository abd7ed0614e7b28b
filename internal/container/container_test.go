package container_test

import (
	"path/filepath"
	"testing"

	"github.com/mautops/procurement-gin/internal/config"
	"github.com/mautops/procurement-gin/internal/container"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(dir, "procurement.db")
	cfg.Storage.Root = filepath.Join(dir, "storage")
	return cfg
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(t)
	log, _ := test.NewNullLogger()

	ctr, err := container.NewContainer(cfg, log)
	require.NoError(t, err)

	assert.NotNil(t, ctr.DB())
	assert.NotNil(t, ctr.Store())
	assert.NotNil(t, ctr.Hub())
	assert.NotNil(t, ctr.EventHandler())
	assert.NotNil(t, ctr.PurchaseRequestService())
	assert.NotNil(t, ctr.UserService())
	assert.NotNil(t, ctr.Collector())
	// 未启用 OpenFGA
	assert.Nil(t, ctr.OpenFGAClient())
	// 未配置 Keycloak 时只有 basic auth
	assert.Len(t, ctr.AuthChain(), 1)

	require.NoError(t, ctr.Close())
}

func TestNewContainer_Keycloak(t *testing.T) {
	cfg := testConfig(t)
	cfg.Keycloak.Issuer = "http://localhost:8082/realms/test"
	cfg.Budget.RefreshInterval = 0

	ctr, err := container.NewContainer(cfg, nil)
	require.NoError(t, err)
	defer ctr.Close()

	assert.Len(t, ctr.AuthChain(), 2)
	assert.Nil(t, ctr.Collector())
}

func TestNewContainer_BadStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Root = ""

	_, err := container.NewContainer(cfg, nil)
	assert.Error(t, err)
}
