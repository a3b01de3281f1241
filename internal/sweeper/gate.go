package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rentflow/rentflow/internal/shared"
)

// DefaultGateWindow is the minimum spacing between sweeps of one branch.
const DefaultGateWindow = 30 * time.Second

// Gate throttles activity-triggered sweeps across every API instance.
type Gate struct {
	client redis.Cmdable
	window time.Duration
}

// NewGate builds a Gate backed by Redis.
func NewGate(client redis.Cmdable, window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultGateWindow
	}
	return &Gate{client: client, window: window}
}

// Window reports the throttle window.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Open reports whether the caller won the right to sweep branchID now.
func (g *Gate) Open(ctx context.Context, branchID int64) (bool, error) {
	ok, err := g.client.SetNX(ctx, shared.SweepGateKey(branchID), time.Now().UTC().Format(time.RFC3339), g.window).Result()
	if err != nil {
		return false, fmt.Errorf("sweep gate: %w", shared.ErrTransientIO)
	}
	return ok, nil
}
