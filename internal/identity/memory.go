package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"rentfold.io/internal/ids"
)

// MemoryAccounts implements AccountStore in process. Used by tests and
// DSN-less development runs.
type MemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	byEmail  map[string]string
}

var _ AccountStore = (*MemoryAccounts)(nil)

// NewMemoryAccounts creates an empty account store.
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
	}
}

func (s *MemoryAccounts) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	email := strings.TrimSpace(strings.ToLower(a.Email))
	if _, ok := s.byEmail[email]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	a.Email = email
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	s.byEmail[email] = a.ID
	return nil
}

func (s *MemoryAccounts) Find(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryAccounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.TrimSpace(strings.ToLower(email))]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

// MemoryRefreshTokens implements RefreshTokenStore in process.
type MemoryRefreshTokens struct {
	mu     sync.RWMutex
	tokens map[string]*RefreshToken
}

var _ RefreshTokenStore = (*MemoryRefreshTokens)(nil)

// NewMemoryRefreshTokens creates an empty refresh token store.
func NewMemoryRefreshTokens() *MemoryRefreshTokens {
	return &MemoryRefreshTokens{tokens: make(map[string]*RefreshToken)}
}

func (s *MemoryRefreshTokens) Create(ctx context.Context, tok *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	cp := *tok
	s.tokens[tok.ID] = &cp
	return nil
}

func (s *MemoryRefreshTokens) Find(ctx context.Context, id string) (*RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *MemoryRefreshTokens) MarkRevoked(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok {
		return ErrNotFound
	}
	tok.Revoked = true
	return nil
}

func (s *MemoryRefreshTokens) MarkRevokedByAccount(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tok := range s.tokens {
		if tok.AccountID == accountID {
			tok.Revoked = true
		}
	}
	return nil
}
