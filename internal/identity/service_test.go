package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"rentfold.io/internal/signal"
)

type staticMirror struct {
	snap MirrorSnapshot
	err  error
}

func (m staticMirror) Snapshot(ctx context.Context, actorID string) (MirrorSnapshot, error) {
	return m.snap, m.err
}

func newTestService(t *testing.T, mirror MirrorReader, opts ...ServiceOption) (*Service, *MemoryAccounts) {
	t.Helper()
	signer, err := NewSigner([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	accounts := NewMemoryAccounts()
	svc, err := NewService(accounts, NewMemoryRefreshTokens(), NewEnricher(mirror), signer, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, accounts
}

func createAccount(t *testing.T, accounts *MemoryAccounts, email, password string, role Role) *Account {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	a := &Account{Email: email, PasswordHash: hash, Role: role, Status: AccountStatusActive}
	if err := accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("Create account: %v", err)
	}
	return a
}

func TestLoginIssuesEnrichedCredential(t *testing.T) {
	mirror := staticMirror{snap: MirrorSnapshot{ProviderAccountID: "acct_9", SubscriptionStatus: "active"}}
	svc, accounts := newTestService(t, mirror)
	createAccount(t, accounts, "lena@example.com", "s3cret", RoleOwner)

	res, err := svc.Login(context.Background(), "Lena@Example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Actor.Role != RoleOwner {
		t.Fatalf("unexpected role %q", res.Actor.Role)
	}
	if res.Enriched.BillingStatus != "active" || res.Enriched.BillingAccountID != "acct_9" {
		t.Fatalf("enrichment missing: %+v", res.Enriched)
	}

	signer, _ := NewSigner([]byte("test-secret"))
	_, claims, err := signer.Resolve(res.Pair.AccessToken)
	if err != nil {
		t.Fatalf("Resolve issued token: %v", err)
	}
	if claims.BillingStatus != "active" {
		t.Fatalf("billing status not embedded in credential: %+v", claims)
	}
}

func TestLoginFailuresCollapseToUnauthorized(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	a := createAccount(t, accounts, "lena@example.com", "s3cret", RoleOwner)

	cases := map[string][2]string{
		"unknown email":  {"nobody@example.com", "s3cret"},
		"wrong password": {"lena@example.com", "wrong"},
		"empty password": {"lena@example.com", ""},
	}
	for name, c := range cases {
		if _, err := svc.Login(context.Background(), c[0], c[1]); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	accounts.accounts[a.ID].Status = AccountStatusDisabled
	if _, err := svc.Login(context.Background(), "lena@example.com", "s3cret"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("disabled account: expected ErrUnauthorized, got %v", err)
	}
}

func TestEnrichmentDefaultsWhenMirrorUnavailable(t *testing.T) {
	svc, accounts := newTestService(t, staticMirror{err: errors.New("pg down")})
	createAccount(t, accounts, "lena@example.com", "s3cret", RoleOwner)

	res, err := svc.Login(context.Background(), "lena@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login must not fail on mirror outage: %v", err)
	}
	if res.Enriched.BillingStatus != BillingStatusUnknown {
		t.Fatalf("expected %q billing status, got %q", BillingStatusUnknown, res.Enriched.BillingStatus)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	createAccount(t, accounts, "lena@example.com", "s3cret", RoleTenant)

	first, err := svc.Login(context.Background(), "lena@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.Pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.Pair.RefreshToken == first.Pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The consumed token is revoked; replaying it fails.
	if _, err := svc.Refresh(context.Background(), first.Pair.RefreshToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential on replay, got %v", err)
	}
}

func TestRefreshRejectsTamperedSecret(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	createAccount(t, accounts, "lena@example.com", "s3cret", RoleTenant)

	res, err := svc.Login(context.Background(), "lena@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	id, _, err := splitRefreshToken(res.Pair.RefreshToken)
	if err != nil {
		t.Fatalf("splitRefreshToken: %v", err)
	}
	tampered := id + "." + "forged-secret"
	if _, err := svc.Refresh(context.Background(), tampered); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	// The mismatch revoked the stored token, so even the genuine secret
	// is now dead.
	if _, err := svc.Refresh(context.Background(), res.Pair.RefreshToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected revocation after tamper attempt, got %v", err)
	}
}

func TestRefreshForDisabledAccountRevokesAll(t *testing.T) {
	svc, accounts := newTestService(t, nil)
	a := createAccount(t, accounts, "lena@example.com", "s3cret", RoleTenant)

	res, err := svc.Login(context.Background(), "lena@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	accounts.accounts[a.ID].Status = AccountStatusDisabled

	if _, err := svc.Refresh(context.Background(), res.Pair.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for disabled account, got %v", err)
	}
	if _, err := svc.Refresh(context.Background(), res.Pair.RefreshToken); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected token revoked after account disable, got %v", err)
	}
}

func TestRefreshConsumesReissueSignal(t *testing.T) {
	hub := signal.NewHub()
	mirror := staticMirror{snap: MirrorSnapshot{ProviderAccountID: "acct_9", SubscriptionStatus: "past_due"}}
	svc, accounts := newTestService(t, mirror, WithSignals(hub))
	a := createAccount(t, accounts, "lena@example.com", "s3cret", RoleOwner)

	res, err := svc.Login(context.Background(), "lena@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	hub.Publish(signal.Reissue{ActorID: a.ID, Reason: "subscription.updated", EmittedAt: time.Now()})

	next, err := svc.Refresh(context.Background(), res.Pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !next.Reenriched {
		t.Fatal("pending signal was not consumed at refresh")
	}
	if _, ok := hub.Consume(a.ID); ok {
		t.Fatal("signal should be consumed exactly once")
	}
}
