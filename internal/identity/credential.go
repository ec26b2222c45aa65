package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "rentfold"

// Claims are the verified contents of an issued credential. The enrichment
// fields (BillingStatus, BillingAccountID) are a point-in-time snapshot of
// the billing mirror taken at issuance; they may lag the mirror until the
// next issuance, bounded by the access TTL.
type Claims struct {
	Role             string `json:"role"`
	BillingStatus    string `json:"billing_status"`
	BillingAccountID string `json:"billing_account_id,omitempty"`
	OwnedEntityID    string `json:"owned_entity_id,omitempty"`
	jwt.RegisteredClaims
}

// Signer signs and verifies credentials using HS256 over a shared secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner constructs a Signer. The secret must be non-empty.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("identity: signing secret is not configured")
	}
	return &Signer{secret: secret, now: time.Now}, nil
}

// Sign issues a credential for the actor with the given enrichment snapshot.
func (s *Signer) Sign(actor Actor, enriched EnrichedClaims, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: ttl must be greater than zero", ErrInvalidInput)
	}
	if actor.Role != RoleOwner && actor.Role != RoleTenant {
		return "", time.Time{}, fmt.Errorf("%w: role %q is not issuable", ErrInvalidInput, actor.Role)
	}

	now := s.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Role:             string(actor.Role),
		BillingStatus:    enriched.BillingStatus,
		BillingAccountID: enriched.BillingAccountID,
		OwnedEntityID:    actor.OwnedEntityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, exp, nil
}

// Resolve verifies the credential and derives the acting identity. Any
// failure (bad signature, expiry, unknown role, missing subject) resolves
// to ErrInvalidCredential and nothing else; there is no guest fallback.
func (s *Signer) Resolve(token string) (Actor, *Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Actor{}, nil, ErrInvalidCredential
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidCredential
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Actor{}, nil, ErrInvalidCredential
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Actor{}, nil, ErrInvalidCredential
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Actor{}, nil, ErrInvalidCredential
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return Actor{}, nil, ErrInvalidCredential
	}

	return Actor{
		ID:            claims.Subject,
		Role:          role,
		OwnedEntityID: claims.OwnedEntityID,
	}, claims, nil
}
