package shared

import (
	"context"
	"strconv"
	"strings"
)

type actorContextKey struct{}

// DefaultActorHeader carries the authenticated user id set by the gateway.
const DefaultActorHeader = "X-User-ID"

// Actor identifies the user performing a request.
type Actor struct {
	UserID int64
}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	if !ok || actor.UserID <= 0 {
		return Actor{}, false
	}
	return actor, true
}

// ActorID returns the current user id or 0 when the context is anonymous.
func ActorID(ctx context.Context) int64 {
	actor, _ := ActorFromContext(ctx)
	return actor.UserID
}

// ParseActor reads a user id header value.
func ParseActor(raw string) (Actor, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Actor{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, false
	}
	return Actor{UserID: id}, true
}
