package connectors

import "context"

// Connector is the lifecycle every external dependency exposes to the service.
type Connector interface {
	Connect(ctx context.Context) error
	Name() string
	IsConnected(ctx context.Context) bool
	Disconnect(ctx context.Context) error
}
