package invite

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"
)

// Prefix marks every invite code.
const Prefix = "INV-"

// DefaultTTL is how long a freshly issued invite stays redeemable.
const DefaultTTL = 4 * time.Hour

const (
	codeLength  = 9
	alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxAttempts = 5
)

var (
	ErrNotFound  = errors.New("invite code not found")
	ErrExpired   = errors.New("invite code expired")
	ErrCodeTaken = errors.New("invite code already exists")
)

// Invite links a code to a class until Expiry.
type Invite struct {
	Code    string    `json:"code"`
	ClassID string    `json:"class_id"`
	Expiry  time.Time `json:"expiry"`
}

// Store persists invites. Save must fail with ErrCodeTaken rather than
// overwrite an existing code; Get returns ErrNotFound for unknown codes.
type Store interface {
	Save(ctx context.Context, inv Invite) error
	Get(ctx context.Context, code string) (Invite, error)
}

// GenerateCode returns "INV-" followed by 9 random base-36 characters.
func GenerateCode() (string, error) {
	var b strings.Builder
	b.Grow(len(Prefix) + codeLength)
	b.WriteString(Prefix)
	base := big.NewInt(int64(len(alphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize upper-cases a user-typed code and trims whitespace.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Issuer hands out and redeems invite codes.
type Issuer struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	gen   func() (string, error)
}

// NewIssuer creates an issuer; a non-positive ttl falls back to DefaultTTL.
func NewIssuer(store Store, ttl time.Duration, now func() time.Time) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{store: store, ttl: ttl, now: now, gen: GenerateCode}
}

// Issue creates a new invite for classID that expires ttl from now.
func (i *Issuer) Issue(ctx context.Context, classID string) (Invite, error) {
	if classID == "" {
		return Invite{}, errors.New("class id required")
	}
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := i.gen()
		if err != nil {
			return Invite{}, err
		}
		inv := Invite{Code: code, ClassID: classID, Expiry: i.now().Add(i.ttl).UTC()}
		err = i.store.Save(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return Invite{}, err
		}
		lastErr = err
	}
	return Invite{}, lastErr
}

// Redeem resolves code to its class id. A code is still valid at exactly
// its expiry instant.
func (i *Issuer) Redeem(ctx context.Context, code string, now time.Time) (string, error) {
	inv, err := i.store.Get(ctx, Normalize(code))
	if err != nil {
		return "", err
	}
	if now.After(inv.Expiry) {
		return "", ErrExpired
	}
	return inv.ClassID, nil
}
