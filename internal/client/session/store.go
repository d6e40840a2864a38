// Package session holds the signed-in principal and the most recent triage
// outcome for one client process.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/curamind/curamind/internal/contract"
)

// Authenticator is the subset of the API client used to sign in and out.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (contract.Principal, error)
	Logout(ctx context.Context) error
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	principal *contract.Principal
	triageID  int64
	triageAt  time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewStore returns an empty store. A remembered triage id expires after ttl;
// zero keeps it until cleared.
func NewStore(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now}
}

// Watch clears the store whenever c reports an expired session.
func (s *Store) Watch(c interface{ OnUnauthenticated(func()) }) {
	c.OnUnauthenticated(s.Clear)
}

func (s *Store) Set(p contract.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal != nil && s.principal.ID != p.ID {
		s.triageID = 0
	}
	s.principal = &p
}

func (s *Store) Current() (contract.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return contract.Principal{}, false
	}
	return *s.principal, true
}

// AccountID returns the signed-in account id, or 0.
func (s *Store) AccountID() int64 {
	p, _ := s.Current()
	return p.ID
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = nil
	s.triageID = 0
	s.triageAt = time.Time{}
}

func (s *Store) RememberTriage(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triageID = id
	s.triageAt = s.now()
}

// LastTriage returns the most recent completed triage session id.
func (s *Store) LastTriage() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.triageID == 0 {
		return 0, false
	}
	if s.ttl > 0 && s.now().Sub(s.triageAt) > s.ttl {
		return 0, false
	}
	return s.triageID, true
}

// ForgetTriage drops the remembered triage once a consultation has used it.
func (s *Store) ForgetTriage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triageID = 0
}

// Login signs in through a and records the principal.
func (s *Store) Login(ctx context.Context, a Authenticator, email, password string) (contract.Principal, error) {
	p, err := a.Login(ctx, email, password)
	if err != nil {
		return contract.Principal{}, err
	}
	s.Set(p)
	return p, nil
}

// Logout clears local state even when the server call fails.
func (s *Store) Logout(ctx context.Context, a Authenticator) error {
	defer s.Clear()
	return a.Logout(ctx)
}
