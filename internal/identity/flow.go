package identity

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"
)

// FlowState is one step of the post-redirect session resolution flow.
type FlowState string

const (
	StateAwaitingRedirect FlowState = "awaiting-redirect"
	StateResolvingSession FlowState = "resolving-session"
	StateProfileCheck     FlowState = "profile-check"
	StateRouted           FlowState = "routed"
	StateError            FlowState = "error"
)

// Destination is where the flow sends the user once resolved.
type Destination string

const (
	DestinationFundingArea Destination = "funding-area"
	DestinationOnboarding  Destination = "onboarding"
	DestinationSignIn      Destination = "sign-in"
)

// SessionStore abstracts the auth service for the resolver: sessions may
// appear asynchronously after an OAuth redirect, or be established
// explicitly from tokens mined out of the redirect URL.
type SessionStore interface {
	CurrentSession(ctx context.Context) (*Session, error)
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
}

// ProfileStore answers whether an onboarded profile exists for a user.
type ProfileStore interface {
	ProfileExists(ctx context.Context, userID string) (bool, error)
}

// Outcome is the terminal result of one resolution run.
type Outcome struct {
	State       FlowState
	Destination Destination
	UserID      string
	Err         error
}

// Resolver drives the session resolution flow after an auth redirect lands.
// Resolution is bounded: a fixed number of session polls with a fixed delay,
// then a secondary attempt using tokens carried in the redirect fragment,
// then a terminal error that routes back to sign-in. Running the resolver
// again for the same store state reaches the same outcome.
type Resolver struct {
	Sessions SessionStore
	Profiles ProfileStore

	// MaxAttempts and Delay bound the session polling loop.
	MaxAttempts int
	Delay       time.Duration
}

func NewResolver(sessions SessionStore, profiles ProfileStore) *Resolver {
	return &Resolver{
		Sessions:    sessions,
		Profiles:    profiles,
		MaxAttempts: 5,
		Delay:       500 * time.Millisecond,
	}
}

// Resolve runs the flow to a terminal state. redirectURL is the full URL
// the auth provider redirected to; its fragment may carry the token pair.
func (r *Resolver) Resolve(ctx context.Context, redirectURL string) Outcome {
	session, err := r.pollSession(ctx)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return errorOutcome(err)
	}

	if session == nil {
		session = r.sessionFromFragment(ctx, redirectURL)
	}
	if session == nil {
		return errorOutcome(errors.New("session did not resolve after redirect"))
	}

	exists, err := r.Profiles.ProfileExists(ctx, session.User.ID)
	if err != nil {
		return errorOutcome(err)
	}

	dest := DestinationOnboarding
	if exists {
		dest = DestinationFundingArea
	}
	log.Printf("[identity] session resolved for user %s, routing to %s", session.User.ID, dest)
	return Outcome{State: StateRouted, Destination: dest, UserID: session.User.ID}
}

// pollSession waits for the auth service to surface the session on its own.
// ErrNoSession means the attempts were exhausted without one appearing.
func (r *Resolver) pollSession(ctx context.Context) (*Session, error) {
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}

	for i := 0; i < attempts; i++ {
		session, err := r.Sessions.CurrentSession(ctx)
		if err != nil && !errors.Is(err, ErrNoSession) {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(r.delay()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrNoSession
}

// sessionFromFragment mines the redirect URL fragment for a token pair and
// establishes a session from it explicitly. Returns nil when the fragment
// carries no usable tokens.
func (r *Resolver) sessionFromFragment(ctx context.Context, redirectURL string) *Session {
	access, refresh := tokensFromFragment(redirectURL)
	if access == "" {
		return nil
	}

	session, err := r.Sessions.EstablishSession(ctx, access, refresh)
	if err != nil {
		log.Printf("[identity] establishing session from redirect tokens failed: %v", err)
		return nil
	}
	return session
}

// tokensFromFragment extracts access_token and refresh_token from a URL
// fragment of the form "#access_token=...&refresh_token=...".
func tokensFromFragment(redirectURL string) (access, refresh string) {
	idx := strings.Index(redirectURL, "#")
	if idx == -1 {
		return "", ""
	}
	values, err := url.ParseQuery(redirectURL[idx+1:])
	if err != nil {
		return "", ""
	}
	return values.Get("access_token"), values.Get("refresh_token")
}

func (r *Resolver) delay() time.Duration {
	if r.Delay > 0 {
		return r.Delay
	}
	return 500 * time.Millisecond
}

func errorOutcome(err error) Outcome {
	log.Printf("[identity] session resolution failed: %v", err)
	return Outcome{State: StateError, Destination: DestinationSignIn, Err: err}
}
