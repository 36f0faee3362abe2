package injector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/config"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
	"github.com/zeusync/mapsync/internal/core/render/raster"
	"github.com/zeusync/mapsync/internal/core/storage/httpapi"
	"github.com/zeusync/mapsync/internal/core/storage/sqlite"
)

func sqliteConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Catalog.Kind = config.CatalogSQLite
	cfg.Catalog.SQLitePath = filepath.Join(t.TempDir(), "catalog.db")
	cfg.Render.Backend = config.RenderNone
	return cfg
}

func TestProvideLister(t *testing.T) {
	cfg := sqliteConfig(t)
	lister, cleanup, err := ProvideLister(cfg, log.NewNop())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &sqlite.DB{}, lister)

	cfg = config.Default()
	lister, cleanup, err = ProvideLister(cfg, log.NewNop())
	require.NoError(t, err)
	defer cleanup()
	assert.IsType(t, &httpapi.Client{}, lister)
}

func TestProvideOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Join.Enabled = false
	cfg.Emissions.Enabled = false
	opts, err := ProvideOptions(cfg, log.NewNop(), Hooks{})
	require.NoError(t, err)
	assert.Nil(t, opts.Joiner)
	assert.Empty(t, opts.Extensions)

	cfg.Join.Enabled = true
	cfg.Emissions.Enabled = true
	quit := func() {}
	opts, err = ProvideOptions(cfg, log.NewNop(), Hooks{OnQuit: quit})
	require.NoError(t, err)
	assert.NotNil(t, opts.Joiner)
	require.Len(t, opts.Extensions, 1)
	assert.Equal(t, "emissions", opts.Extensions[0].Name())
	assert.NotNil(t, opts.OnQuit)
}

func TestProvideBroker_Disabled(t *testing.T) {
	broker, cleanup, err := ProvideBroker(config.Default(), log.NewNop())
	require.NoError(t, err)
	assert.Nil(t, broker)
	cleanup()
}

func TestProvideTransport_EmbeddedBroker(t *testing.T) {
	cfg := config.Default()
	cfg.Channel.Transport = string(protocol.KindNATS)
	cfg.Channel.EmbeddedBroker = true
	cfg.Channel.BrokerPort = -1

	broker, cleanup, err := ProvideBroker(cfg, log.NewNop())
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, broker)

	transport, err := ProvideTransport(cfg, broker, log.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, transport)
}

func TestInitializeApp(t *testing.T) {
	cfg := sqliteConfig(t)
	app, cleanup, err := InitializeApp(cfg, raster.NewDrawer(""), Hooks{})
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, app.Engine)
	assert.Nil(t, app.Broker)
	assert.False(t, app.Engine.Mounted())
	assert.Same(t, app.Loop, app.Engine.Scheduler())
}
