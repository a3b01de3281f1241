package shared

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type actorContextKey struct{}

// ActorHeader carries the staff identity resolved by the upstream auth layer.
const ActorHeader = "X-Actor-ID"

// ContextWithActor stores the acting staff member in context.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting staff member from context.
func ActorFromContext(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(actorContextKey{}).(int64)
	if !ok || id <= 0 {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

// ParseActor parses a raw header value into an actor id.
func ParseActor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrUnauthenticated
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("actor %q: %w", raw, ErrUnauthenticated)
	}
	return id, nil
}
