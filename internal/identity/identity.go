// Package identity resolves who is calling: an administrator holding a
// signed token, or an anonymous guest.
package identity

import "context"

type Role string

const (
	RoleGuest Role = "Guest"
	RoleAdmin Role = "Admin"
)

type Actor struct {
	Role Role
	UID  string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Guest is the actor of every unauthenticated request.
var Guest = Actor{Role: RoleGuest}

// Provider returns the actor of the current request.
type Provider interface {
	CurrentActor(ctx context.Context) Actor
}

type actorKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns Guest when no actor was attached.
func ActorFromContext(ctx context.Context) Actor {
	if a, ok := ctx.Value(actorKey{}).(Actor); ok {
		return a
	}
	return Guest
}

// ContextProvider reads the actor the Authenticate middleware stored in the
// request context.
type ContextProvider struct{}

func (ContextProvider) CurrentActor(ctx context.Context) Actor {
	return ActorFromContext(ctx)
}

// StaticProvider always returns the same actor.
type StaticProvider Actor

func (p StaticProvider) CurrentActor(context.Context) Actor {
	return Actor(p)
}
