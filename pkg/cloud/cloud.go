package cloud

import (
	"context"

	"github.com/cuemby/drover/pkg/log"
)

// Manager is the provider SPI the scale controller drives. Both calls
// are fire-and-forget requests against the provisioning backend;
// idempotence is not required because the controller guards invocations
// with cool-down and evaluation timers.
type Manager interface {
	// ScaleUp requests n additional nodes for the cluster
	ScaleUp(ctx context.Context, n int) error

	// ScaleDown requests physical removal of the given nodes
	ScaleDown(ctx context.Context, nodeIDs []string) error
}

// LogManager is a Manager that only records the requests it receives.
// It serves clusters without a provisioning hook and local development.
type LogManager struct{}

// NewLogManager creates a logging-only cloud manager
func NewLogManager() *LogManager {
	return &LogManager{}
}

func (m *LogManager) ScaleUp(ctx context.Context, n int) error {
	logger := log.WithComponent("cloud")
	logger.Info().Int("nodes", n).Msg("scale up requested")
	return nil
}

func (m *LogManager) ScaleDown(ctx context.Context, nodeIDs []string) error {
	logger := log.WithComponent("cloud")
	logger.Info().Strs("node_ids", nodeIDs).Msg("scale down requested")
	return nil
}
