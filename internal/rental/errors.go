package rental

import (
	"fmt"

	"github.com/rentflow/rentflow/internal/shared"
)

var (
	ErrOrderNotFound     = fmt.Errorf("order %w", shared.ErrNotFound)
	ErrVersionMismatch   = fmt.Errorf("order was modified concurrently: %w", shared.ErrConflict)
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", shared.ErrConflict)
	ErrCannotCancel      = fmt.Errorf("order can no longer be cancelled: %w", shared.ErrConflict)
	ErrItemsLocked       = fmt.Errorf("item set is locked after returns: %w", shared.ErrConflict)
	ErrDuplicateRequest  = fmt.Errorf("request is still being processed: %w", shared.ErrConflict)
)
