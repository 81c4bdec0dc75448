// Package flowstate persists the artifacts of an in-flight redirect sign-in,
// so the flow can be finished after the app is relaunched by the redirect.
package flowstate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jrsteele09/go-auth-sdk/kvstore"
	"github.com/pkg/errors"
)

// State is the whole persisted record. It is always written in one Set.
type State struct {
	// State is the nonce sent as the OAuth state parameter, including any
	// custom state suffix.
	State        string `json:"state,omitempty"`
	PKCEVerifier string `json:"pkceVerifier,omitempty"`
	InFlight     bool   `json:"inflightOAuth,omitempty"`
	// CompletedSignIn is set once a redirect sign-in succeeded and stays set
	// until sign-out, which uses it to decide whether to visit /logout.
	CompletedSignIn bool      `json:"oauthSignIn,omitempty"`
	StartedAt       time.Time `json:"startedAt,omitzero"`
}

// Store reads and writes the record for one domain and client.
type Store struct {
	store kvstore.Store
	key   string
}

// NewStore binds the record to the configured domain and client id, so a
// configuration change never picks up a stale flow.
func NewStore(store kvstore.Store, domain, clientID string) *Store {
	return &Store{store: store, key: "authsdk." + clientID + "." + domain + ".oauth"}
}

// Load returns the record, or a zero State when none is stored. A record
// that cannot be decoded or opened is treated as absent.
func (s *Store) Load(ctx context.Context) (State, error) {
	value, ok, err := s.store.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrCorrupt) {
		return State{}, nil
	}
	if err != nil {
		return State{}, errors.Wrap(err, "[flowstate.Load]")
	}
	if !ok {
		return State{}, nil
	}
	var state State
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return State{}, nil
	}
	return state, nil
}

// Start records a new flow, replacing any previous flow fields while keeping
// CompletedSignIn.
func (s *Store) Start(ctx context.Context, nonce, verifier string, now time.Time) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return s.Save(ctx, State{
		State:           nonce,
		PKCEVerifier:    verifier,
		InFlight:        true,
		CompletedSignIn: current.CompletedSignIn,
		StartedAt:       now,
	})
}

// Settle resets the flow fields. A successful flow sets CompletedSignIn; a
// failed one leaves it as it was.
func (s *Store) Settle(ctx context.Context, succeeded bool) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	return s.Save(ctx, State{CompletedSignIn: current.CompletedSignIn || succeeded})
}

func (s *Store) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "[flowstate.Save]")
	}
	return errors.Wrap(s.store.Set(ctx, s.key, string(data)), "[flowstate.Save]")
}

// Clear removes the record, including CompletedSignIn.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Wrap(s.store.Remove(ctx, s.key), "[flowstate.Clear]")
}
