package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSessions scripts session availability per poll attempt.
type fakeSessions struct {
	polls        int
	availableAt  int // poll index (1-based) at which a session appears; 0 = never
	establishOK  bool
	established  bool
	establishArg string
}

func (f *fakeSessions) CurrentSession(context.Context) (*Session, error) {
	f.polls++
	if f.availableAt > 0 && f.polls >= f.availableAt {
		return &Session{AccessToken: "polled-token", User: User{ID: "user-123"}}, nil
	}
	return nil, nil
}

func (f *fakeSessions) EstablishSession(_ context.Context, access, refresh string) (*Session, error) {
	f.establishArg = access
	if !f.establishOK {
		return nil, errors.New("token rejected")
	}
	f.established = true
	return &Session{AccessToken: access, RefreshToken: refresh, User: User{ID: "user-123"}}, nil
}

type fakeProfiles struct {
	exists bool
	err    error
	lookup string
}

func (f *fakeProfiles) ProfileExists(_ context.Context, userID string) (bool, error) {
	f.lookup = userID
	return f.exists, f.err
}

func fastResolver(s SessionStore, p ProfileStore) *Resolver {
	r := NewResolver(s, p)
	r.Delay = time.Millisecond
	return r
}

func TestResolveSessionAppearsProfileExists(t *testing.T) {
	sessions := &fakeSessions{availableAt: 3}
	profiles := &fakeProfiles{exists: true}

	out := fastResolver(sessions, profiles).Resolve(context.Background(), "https://app.example/auth/callback")

	if out.State != StateRouted || out.Destination != DestinationFundingArea {
		t.Fatalf("outcome = %+v, want routed to funding area", out)
	}
	if out.UserID != "user-123" {
		t.Errorf("UserID = %q, want user-123", out.UserID)
	}
	if profiles.lookup != "user-123" {
		t.Errorf("profile looked up for %q, want the session's user", profiles.lookup)
	}
	if sessions.polls != 3 {
		t.Errorf("polled %d times, want 3 (stop as soon as the session appears)", sessions.polls)
	}
}

func TestResolveSessionAppearsNoProfile(t *testing.T) {
	sessions := &fakeSessions{availableAt: 1}
	profiles := &fakeProfiles{exists: false}

	out := fastResolver(sessions, profiles).Resolve(context.Background(), "https://app.example/auth/callback")

	if out.State != StateRouted || out.Destination != DestinationOnboarding {
		t.Fatalf("outcome = %+v, want routed to onboarding", out)
	}
}

func TestResolveFallsBackToFragmentTokens(t *testing.T) {
	sessions := &fakeSessions{availableAt: 0, establishOK: true}
	profiles := &fakeProfiles{exists: true}

	redirect := "https://app.example/auth/callback#access_token=frag-access&refresh_token=frag-refresh&token_type=bearer"
	out := fastResolver(sessions, profiles).Resolve(context.Background(), redirect)

	if out.State != StateRouted || out.Destination != DestinationFundingArea {
		t.Fatalf("outcome = %+v, want routed via fragment tokens", out)
	}
	if !sessions.established {
		t.Error("session was not established from fragment tokens")
	}
	if sessions.establishArg != "frag-access" {
		t.Errorf("established with %q, want frag-access", sessions.establishArg)
	}
	if sessions.polls != 5 {
		t.Errorf("polled %d times, want all 5 attempts before the fallback", sessions.polls)
	}
}

func TestResolveExhaustionRoutesToSignIn(t *testing.T) {
	sessions := &fakeSessions{availableAt: 0}
	profiles := &fakeProfiles{exists: true}

	out := fastResolver(sessions, profiles).Resolve(context.Background(), "https://app.example/auth/callback")

	if out.State != StateError || out.Destination != DestinationSignIn {
		t.Fatalf("outcome = %+v, want error routed to sign-in", out)
	}
	if out.Err == nil {
		t.Error("terminal error outcome has nil Err")
	}
}

func TestResolveReentryConverges(t *testing.T) {
	// Same store state, two runs, same decision.
	for i := 0; i < 2; i++ {
		sessions := &fakeSessions{availableAt: 2}
		profiles := &fakeProfiles{exists: false}
		out := fastResolver(sessions, profiles).Resolve(context.Background(), "https://app.example/auth/callback")
		if out.State != StateRouted || out.Destination != DestinationOnboarding {
			t.Fatalf("run %d: outcome = %+v, want onboarding", i, out)
		}
	}
}

func TestResolveProfileLookupErrorIsTerminal(t *testing.T) {
	sessions := &fakeSessions{availableAt: 1}
	profiles := &fakeProfiles{err: errors.New("profile service down")}

	out := fastResolver(sessions, profiles).Resolve(context.Background(), "https://app.example/auth/callback")

	if out.State != StateError || out.Destination != DestinationSignIn {
		t.Fatalf("outcome = %+v, want error routed to sign-in", out)
	}
}

func TestTokensFromFragment(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		access  string
		refresh string
	}{
		{"both tokens", "https://x/auth/callback#access_token=a&refresh_token=r", "a", "r"},
		{"access only", "https://x/auth/callback#access_token=a", "a", ""},
		{"no fragment", "https://x/auth/callback?code=abc", "", ""},
		{"unrelated fragment", "https://x/auth/callback#section-2", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			access, refresh := tokensFromFragment(tt.url)
			if access != tt.access || refresh != tt.refresh {
				t.Errorf("got (%q, %q), want (%q, %q)", access, refresh, tt.access, tt.refresh)
			}
		})
	}
}
