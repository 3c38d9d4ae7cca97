// Package identity supplies the signed-in participant id the coordinator needs
// before any directory call.
package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VissentvNoord/lobby-system/internal/events"
	"github.com/VissentvNoord/lobby-system/internal/lobbyerr"
)

type Provider interface {
	SignIn(ctx context.Context) (string, error)
	// PlayerID is empty until SignIn succeeds.
	PlayerID() string
}

// Anonymous issues a random player id on first sign-in and keeps it for the process.
type Anonymous struct {
	mu sync.Mutex
	id string
	// pending is the configured id, issued by SignIn.
	pending string
}

var _ Provider = (*Anonymous)(nil)

func NewAnonymous() *Anonymous { return &Anonymous{} }

// Fixed signs in with a known id, e.g. from configuration.
func Fixed(id string) *Anonymous { return &Anonymous{pending: id} }

func (a *Anonymous) SignIn(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", lobbyerr.Wrap(lobbyerr.KindUnauthenticated, "identity.sign_in", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id == "" {
		a.id = a.pending
	}
	if a.id == "" {
		a.id = uuid.NewString()
	}
	return a.id, nil
}

func (a *Anonymous) PlayerID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Authenticate signs in and publishes authenticated or authenticationFail.
func Authenticate(ctx context.Context, p Provider, bus *events.Bus, logger *zap.Logger) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id, err := p.SignIn(ctx)
	if err == nil && id == "" {
		err = lobbyerr.New(lobbyerr.KindUnauthenticated, "identity.sign_in", "provider returned an empty id")
	}
	if err != nil {
		logger.Warn("sign-in failed", zap.Error(err))
		bus.Publish(events.Event{Kind: events.AuthenticationFail, Op: "authenticate", Err: err})
		return "", err
	}
	logger.Info("signed in", zap.String("player_id", id))
	bus.Publish(events.Event{Kind: events.Authenticated, Op: "authenticate", PlayerID: id})
	return id, nil
}
