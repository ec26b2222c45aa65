package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"rentfold.io/internal/ids"
	"rentfold.io/internal/signal"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 14
)

// Service issues and refreshes credentials. Enrichment runs exactly once
// per issuance: a single billing-mirror read, embedded into the credential.
type Service struct {
	accounts AccountStore
	refresh  RefreshTokenStore
	enricher *Enricher
	signer   *Signer
	signals  *signal.Hub

	now        func() time.Time
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAccessTTL configures access credential lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithSignals attaches the advisory re-issuance hub.
func WithSignals(hub *signal.Hub) ServiceOption {
	return func(s *Service) { s.signals = hub }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the issuance service.
func NewService(accounts AccountStore, refresh RefreshTokenStore, enricher *Enricher, signer *Signer, opts ...ServiceOption) (*Service, error) {
	if accounts == nil || refresh == nil || signer == nil {
		return nil, errors.New("identity: accounts, refresh store, and signer are required")
	}
	svc := &Service{
		accounts:   accounts,
		refresh:    refresh,
		enricher:   enricher,
		signer:     signer,
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AccessTTL reports the configured access credential lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// TokenPair carries access and refresh credentials with expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssueResult is the outcome of a successful issuance.
type IssueResult struct {
	Pair       TokenPair
	Actor      Actor
	Enriched   EnrichedClaims
	Reenriched bool // a pending re-issuance signal was consumed
}

// Login authenticates email+password and issues a fresh credential pair.
// All authentication failures collapse to ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (IssueResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return IssueResult{}, ErrUnauthorized
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		return IssueResult{}, ErrUnauthorized
	}
	if account.Status != AccountStatusActive {
		return IssueResult{}, ErrUnauthorized
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return IssueResult{}, ErrUnauthorized
	}
	return s.issue(ctx, account)
}

// Refresh rotates the refresh token and issues a new credential pair. A
// secret mismatch against the stored hash revokes the token outright.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (IssueResult, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return IssueResult{}, ErrInvalidCredential
	}

	record, err := s.refresh.Find(ctx, tokenID)
	if err != nil {
		return IssueResult{}, ErrInvalidCredential
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return IssueResult{}, ErrInvalidCredential
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = s.refresh.MarkRevoked(ctx, record.ID)
		return IssueResult{}, ErrInvalidCredential
	}

	account, err := s.accounts.Find(ctx, record.AccountID)
	if err != nil {
		return IssueResult{}, ErrInvalidCredential
	}
	if account.Status != AccountStatusActive {
		_ = s.refresh.MarkRevokedByAccount(ctx, account.ID)
		return IssueResult{}, ErrUnauthorized
	}

	// Rotate: revoke old, issue new pair.
	if err := s.refresh.MarkRevoked(ctx, record.ID); err != nil {
		return IssueResult{}, err
	}
	return s.issue(ctx, account)
}

func (s *Service) issue(ctx context.Context, account *Account) (IssueResult, error) {
	actor := account.Actor()
	enriched := s.enricher.Enrich(ctx, actor.ID)

	reenriched := false
	if s.signals != nil {
		if _, ok := s.signals.Consume(actor.ID); ok {
			reenriched = true
		}
	}

	accessToken, accessExp, err := s.signer.Sign(actor, enriched, s.accessTTL)
	if err != nil {
		return IssueResult{}, err
	}
	refreshString, refreshRec, err := s.generateRefreshToken(actor.ID)
	if err != nil {
		return IssueResult{}, err
	}
	if err := s.refresh.Create(ctx, refreshRec); err != nil {
		return IssueResult{}, err
	}

	return IssueResult{
		Pair: TokenPair{
			AccessToken:      accessToken,
			RefreshToken:     refreshString,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: refreshRec.ExpiresAt,
		},
		Actor:      actor,
		Enriched:   enriched,
		Reenriched: reenriched,
	}, nil
}

func (s *Service) generateRefreshToken(accountID string) (string, *RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	tokenID := ids.New()
	sum := sha256.Sum256([]byte(secret))
	rec := &RefreshToken{
		ID:        tokenID,
		AccountID: accountID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	return tokenID + "." + secret, rec, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}
