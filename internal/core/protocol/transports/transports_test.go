package transports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
	"github.com/zeusync/mapsync/internal/core/protocol/nats"
	"github.com/zeusync/mapsync/internal/core/protocol/quic"
	"github.com/zeusync/mapsync/internal/core/protocol/websocket"
)

func TestNew(t *testing.T) {
	cfg := protocol.DefaultConfig()

	tr, err := New(cfg, log.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &websocket.Transport{}, tr)

	cfg.Kind = protocol.KindNATS
	tr, err = New(cfg, log.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &nats.Transport{}, tr)

	cfg.Kind = protocol.KindQUIC
	tr, err = New(cfg, log.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &quic.Transport{}, tr)

	cfg.Kind = "carrier-pigeon"
	_, err = New(cfg, log.NewNop())
	assert.ErrorIs(t, err, protocol.ErrUnknownKind)
}
