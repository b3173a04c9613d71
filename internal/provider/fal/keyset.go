package fal

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultJWKSURL    = "https://rest.alpha.fal.ai/.well-known/jwks.json"
	defaultKeySetTTL  = 24 * time.Hour
	freshnessWindow   = 5 * time.Minute
	ed25519PublicSize = ed25519.PublicKeySize
)

// Static errors for webhook verification.
var (
	// ErrMissingSignatureHeaders is returned when any of the four signature
	// headers is absent.
	ErrMissingSignatureHeaders = errors.New("fal: missing webhook signature headers")
	// ErrStaleTimestamp is returned when the callback timestamp is outside the
	// freshness window.
	ErrStaleTimestamp = errors.New("fal: webhook timestamp outside freshness window")
	// ErrInvalidSignature is returned when no published key verifies the signature.
	ErrInvalidSignature = errors.New("fal: invalid webhook signature")
	// ErrKeySetFetchFailed is returned when the JWKS endpoint cannot be read.
	ErrKeySetFetchFailed = errors.New("fal: failed to fetch key set")
)

// KeySet caches fal's published ed25519 webhook-signing keys, refreshed lazily
// when the cached copy is older than the TTL. The clock and TTL are injectable
// so expiry is testable without waiting on real time.
type KeySet struct {
	mu        sync.Mutex
	keys      []ed25519.PublicKey
	fetchedAt time.Time

	client *resty.Client
	url    string
	ttl    time.Duration
	now    func() time.Time
}

// KeySetOption configures a KeySet.
type KeySetOption func(*KeySet)

// WithJWKSURL overrides the key set endpoint.
func WithJWKSURL(u string) KeySetOption {
	return func(ks *KeySet) {
		ks.url = u
	}
}

// WithKeySetTTL overrides how long fetched keys are reused.
func WithKeySetTTL(ttl time.Duration) KeySetOption {
	return func(ks *KeySet) {
		ks.ttl = ttl
	}
}

// WithKeySetClock overrides the time source.
func WithKeySetClock(now func() time.Time) KeySetOption {
	return func(ks *KeySet) {
		ks.now = now
	}
}

// NewKeySet creates a lazily populated key cache.
func NewKeySet(opts ...KeySetOption) *KeySet {
	ks := &KeySet{
		client: resty.New().SetTimeout(10 * time.Second),
		url:    defaultJWKSURL,
		ttl:    defaultKeySetTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks
}

type jwksDocument struct {
	Keys []struct {
		X string `json:"x"` // base64url raw ed25519 public key
	} `json:"keys"`
}

// Keys returns the cached public keys, refreshing them when stale.
func (ks *KeySet) Keys(ctx context.Context) ([]ed25519.PublicKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if ks.keys != nil && ks.now().Sub(ks.fetchedAt) < ks.ttl {
		return ks.keys, nil
	}

	var doc jwksDocument
	resp, err := ks.client.R().SetContext(ctx).SetResult(&doc).Get(ks.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySetFetchFailed, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: status %d", ErrKeySetFetchFailed, resp.StatusCode())
	}

	keys := make([]ed25519.PublicKey, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		raw, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil || len(raw) != ed25519PublicSize {
			continue
		}
		keys = append(keys, ed25519.PublicKey(raw))
	}

	ks.keys = keys
	ks.fetchedAt = ks.now()
	return keys, nil
}

// Verifier checks fal webhook signatures against the published key set.
type Verifier struct {
	keySet *KeySet
	now    func() time.Time
}

// NewVerifier creates a webhook verifier backed by the given key set. The
// clock is shared with the key set so tests drive both with one fake.
func NewVerifier(keySet *KeySet) *Verifier {
	return &Verifier{keySet: keySet, now: keySet.now}
}

// Verify checks the signature headers of a fal webhook delivery. The signed
// message is "{requestID}\n{userID}\n{timestamp}\n{hex(sha256(body))}",
// verified against each published ed25519 key. Timestamps further than five
// minutes from present are rejected before any key is tried.
func (v *Verifier) Verify(ctx context.Context, requestID, userID, timestamp, signature string, body []byte) error {
	if requestID == "" || userID == "" || timestamp == "" || signature == "" {
		return ErrMissingSignatureHeaders
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrMissingSignatureHeaders, timestamp)
	}
	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(freshnessWindow.Seconds()) {
		return ErrStaleTimestamp
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	bodyHash := sha256.Sum256(body)
	message := []byte(requestID + "\n" + userID + "\n" + timestamp + "\n" + hex.EncodeToString(bodyHash[:]))

	keys, err := v.keySet.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if ed25519.Verify(key, message, sig) {
			return nil
		}
	}
	return ErrInvalidSignature
}
