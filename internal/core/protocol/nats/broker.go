package nats

import (
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/observability/log"
)

// Broker is an in-process NATS server for kiosk deployments where the game
// servers publish straight to the map host.
type Broker struct {
	ns             *server.Server
	startupTimeout time.Duration
	logger         log.Log
}

type BrokerOpt func(*brokerOptions)

type brokerOptions struct {
	host           string
	port           int
	startupTimeout time.Duration
}

func WithHost(host string) BrokerOpt {
	return func(o *brokerOptions) { o.host = host }
}

// WithPort sets the listen port. server.RANDOM_PORT picks a free one.
func WithPort(port int) BrokerOpt {
	return func(o *brokerOptions) { o.port = port }
}

func WithStartTimeout(d time.Duration) BrokerOpt {
	return func(o *brokerOptions) { o.startupTimeout = d }
}

func NewBroker(logger log.Log, opts ...BrokerOpt) (*Broker, error) {
	o := brokerOptions{host: "127.0.0.1", port: server.DEFAULT_PORT, startupTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = log.Provide()
	}

	ns, err := server.NewServer(&server.Options{
		Host:   o.host,
		Port:   o.port,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nats server")
	}
	return &Broker{ns: ns, startupTimeout: o.startupTimeout, logger: logger.With(log.String("component", "broker"))}, nil
}

// Start runs the server and waits until it accepts clients.
func (b *Broker) Start() error {
	go b.ns.Start()
	if !b.ns.ReadyForConnections(b.startupTimeout) {
		b.ns.Shutdown()
		return errors.New("nats server not ready for connections")
	}
	b.logger.Info("Embedded broker listening", log.String("url", b.ClientURL()))
	return nil
}

func (b *Broker) ClientURL() string {
	return b.ns.ClientURL()
}

func (b *Broker) Shutdown() {
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
}
