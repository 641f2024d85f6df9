package bookhive

import (
	"context"
)

var actorCtxKey = &contextKey{"actor"}
var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithActorContext sets the ActorRef reported by lifecycle events
func WithActorContext(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext finds the actor from the context.
func ActorFromContext(ctx context.Context) (ActorRef, bool) {
	raw, ok := ctx.Value(actorCtxKey).(ActorRef)
	return raw, ok
}

// WithIdentityContext sets the decoded Identity in the given context
func WithIdentityContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext extracts the Identity from the context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok
}

// ActorFromIdentity builds a user ActorRef
func ActorFromIdentity(identity Identity) ActorRef {
	return ActorRef{
		ID:   firstNonEmpty(identity.ID, identity.Username, identity.Email),
		Type: "user",
	}
}
