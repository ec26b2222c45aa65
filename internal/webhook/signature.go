package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the provider's timestamped HMAC over the body.
const SignatureHeader = "X-Billing-Signature"

// DefaultTolerance bounds how old a signed timestamp may be. It limits the
// replay window for captured requests; the idempotency ledger handles the
// rest.
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("webhook: invalid signature")
	ErrStaleTimestamp   = errors.New("webhook: stale timestamp")
)

// Verifier checks provider signatures of the form
//
//	t=<unix>,v1=<hex hmac-sha256 of "<t>.<body>">
//
// using a shared secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier constructs a Verifier. A zero tolerance falls back to the
// default window.
func NewVerifier(secret []byte, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: time.Now}
}

// Verify validates the header against the body. Comparison of the digest is
// constant time.
func (v *Verifier) Verify(header string, body []byte) error {
	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := v.now().UTC().Sub(time.Unix(ts, 0).UTC())
	if age > v.tolerance || age < -v.tolerance {
		return ErrStaleTimestamp
	}

	want := computeSignature(v.secret, ts, body)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(want)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a header value for the body, used by tests and tooling.
func Sign(secret []byte, ts int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", ts, computeSignature(secret, ts, body))
}

func computeSignature(secret []byte, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (int64, string, error) {
	var tsRaw, sig string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			tsRaw = v
		case "v1":
			sig = v
		}
	}
	if tsRaw == "" || sig == "" {
		return 0, "", ErrInvalidSignature
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidSignature
	}
	return ts, sig, nil
}
