// Package transports selects a push channel implementation by kind.
package transports

import (
	"fmt"

	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
	"github.com/zeusync/mapsync/internal/core/protocol/nats"
	"github.com/zeusync/mapsync/internal/core/protocol/quic"
	"github.com/zeusync/mapsync/internal/core/protocol/websocket"
)

func New(config protocol.Config, logger log.Log) (protocol.Transport, error) {
	switch config.Kind {
	case protocol.KindWebSocket, "":
		return websocket.New(config, logger), nil
	case protocol.KindNATS:
		return nats.New(config, logger), nil
	case protocol.KindQUIC:
		return quic.New(config, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownKind, config.Kind)
	}
}
