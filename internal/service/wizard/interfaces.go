package wizard

import (
	"context"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
)

// StateStore is the storage adapter the wizard persists the aggregate
// through between steps. The wizard is agnostic to whether the store is
// session-backed or a remote service; it never retries a failed round-trip.
type StateStore interface {
	// Get loads the working copy of a return
	Get(ctx context.Context, returnID string) (*returns.WaterReturn, error)
	// Set saves the working copy after a step mutation
	Set(ctx context.Context, wr *returns.WaterReturn) error
	// Submit persists a completed return and clears the working copy
	Submit(ctx context.Context, wr *returns.WaterReturn) error
}
