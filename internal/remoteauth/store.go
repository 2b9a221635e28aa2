// Package remoteauth implements the pairing-code and bearer-token
// lifecycle: one live pairing code at a time, per-IP rate limiting on pair
// attempts, and token minting/validation/refresh/revocation.
package remoteauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/okena/remoted/internal/logger"
)

// TokenTTL and RefreshAge live together so the refresh-before-expiry
// invariant (RefreshAge < TokenTTL) is checkable in one place; both
// minting and the client's proactive-refresh decision consult them.
const (
	TokenTTL   = 24 * time.Hour
	RefreshAge = 72000 * time.Second // 20h

	pairCodeTTL = 60 * time.Second

	rateLimitAttempts = 5
	rateLimitWindow   = 60 * time.Second

	pairFailureDelay = 300 * time.Millisecond
)

// Sentinel errors returned by AuthStore operations; callers map these to
// HTTP status codes.
var (
	ErrInvalidCode   = errors.New("remoteauth: invalid or expired pairing code")
	ErrRateLimited   = errors.New("remoteauth: too many failed pairing attempts")
	ErrTokenExpired  = errors.New("remoteauth: token expired")
	ErrTokenRevoked  = errors.New("remoteauth: token revoked")
	ErrTokenUnknown  = errors.New("remoteauth: unknown token")
)

// TokenInfo is the admin-facing view of a live token, returned by
// ListTokens.
type TokenInfo struct {
	ID        string
	CreatedAt time.Time
	LastUsed  time.Time
}

type tokenRecord struct {
	id        string
	createdAt time.Time
	lastUsed  time.Time
	revoked   bool
}

type pairingCode struct {
	code      string
	expiresAt time.Time
}

// AuthStore issues and validates pairing codes and bearer tokens, and rate
// limits pairing attempts per peer IP.
type AuthStore struct {
	secret []byte

	mu      sync.Mutex
	code    *pairingCode
	tokens  map[string]*tokenRecord // keyed by tokenDigest; the store never retains a raw bearer token
	limiter map[string]*rate.Limiter
}

// tokenDigest is the map key for a signed token: a blake2b-256 digest, so
// the record set can be listed and revoked without the store holding any
// usable bearer token.
func tokenDigest(signed string) string {
	sum := blake2b.Sum256([]byte(signed))
	return hex.EncodeToString(sum[:])
}

// NewAuthStore creates an AuthStore with a fresh random HMAC signing
// secret. The secret is process-local: tokens do not survive a restart,
// and clients demote to pairing when a restarted server rejects them.
func NewAuthStore() (*AuthStore, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("remoteauth: generating signing secret: %w", err)
	}
	return &AuthStore{
		secret:  secret,
		tokens:  make(map[string]*tokenRecord),
		limiter: make(map[string]*rate.Limiter),
	}, nil
}

// GetOrCreateCode returns the current live pairing code, rotating it if
// none exists or the current one has expired.
func (s *AuthStore) GetOrCreateCode() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.code != nil && time.Now().Before(s.code.expiresAt) {
		return s.code.code, nil
	}
	return s.rotateCodeLocked()
}

func (s *AuthStore) rotateCodeLocked() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("remoteauth: generating pairing code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	s.code = &pairingCode{code: code, expiresAt: time.Now().Add(pairCodeTTL)}
	return code, nil
}

func (s *AuthStore) limiterFor(peerIP string) *rate.Limiter {
	l, ok := s.limiter[peerIP]
	if !ok {
		// rateLimitAttempts tokens per rateLimitWindow, burst sized to the
		// full allowance so the first window behaves like a plain counter.
		l = rate.NewLimiter(rate.Every(rateLimitWindow/rateLimitAttempts), rateLimitAttempts)
		s.limiter[peerIP] = l
	}
	return l
}

// TryPair atomically checks code against the live pairing code. On match,
// it rotates the code (so replays fail), mints a fresh token, and returns
// it. On mismatch it returns ErrInvalidCode; if peerIP has exceeded the
// failure-rate threshold it returns ErrRateLimited without even comparing
// the code. Both error paths sleep ~300ms before returning, to blunt
// timing and brute-force attacks. Only failed attempts count against the
// rate limit — a successful pair never consumes from the budget.
func (s *AuthStore) TryPair(code, peerIP string) (token string, expiresIn time.Duration, err error) {
	s.mu.Lock()
	limiter := s.limiterFor(peerIP)
	reservation := limiter.Reserve()
	if !reservation.OK() || reservation.Delay() > 0 {
		reservation.Cancel()
		s.mu.Unlock()
		time.Sleep(pairFailureDelay)
		return "", 0, ErrRateLimited
	}

	live := s.code
	if live == nil || time.Now().After(live.expiresAt) || !constantTimeEqual(live.code, code) {
		// keep the reservation consumed: this is a counted failure.
		s.mu.Unlock()
		time.Sleep(pairFailureDelay)
		return "", 0, ErrInvalidCode
	}
	reservation.Cancel() // success never counts against the budget

	if _, err := s.rotateCodeLocked(); err != nil {
		s.mu.Unlock()
		return "", 0, err
	}
	rec, signed, err := s.mintTokenLocked()
	s.mu.Unlock()
	if err != nil {
		return "", 0, err
	}

	logger.Logger.Info().Str("token_id", rec.id).Msg("pairing succeeded")
	return signed, TokenTTL, nil
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type claims struct {
	jwt.RegisteredClaims
}

func (s *AuthStore) mintTokenLocked() (*tokenRecord, string, error) {
	id := uuid.NewString()
	now := time.Now()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("remoteauth: signing token: %w", err)
	}

	rec := &tokenRecord{id: id, createdAt: now, lastUsed: now}
	s.tokens[tokenDigest(signed)] = rec
	return rec, signed, nil
}

// ValidateToken reports whether token is a currently live, non-expired,
// non-revoked token minted by this store. The comparison path uses the JWT
// library's own constant-time signature check; this method additionally
// guards against a signature-valid-but-revoked token by consulting the
// tracked record.
func (s *AuthStore) ValidateToken(token string) bool {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[tokenDigest(token)]
	if !ok || rec.revoked {
		return false
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return false
	}
	rec.lastUsed = time.Now()
	return true
}

func (s *AuthStore) parseAndVerify(token string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenUnknown, err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok {
		return nil, ErrTokenUnknown
	}
	return c, nil
}

// RefreshToken mints a new token and atomically revokes the presented one,
// so a concurrent ValidateToken can never observe both tokens live or
// neither. It fails if the presented token is not itself currently valid.
func (s *AuthStore) RefreshToken(token string) (string, time.Duration, error) {
	if _, err := s.parseAndVerify(token); err != nil {
		return "", 0, ErrTokenUnknown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[tokenDigest(token)]
	if !ok || rec.revoked {
		return "", 0, ErrTokenRevoked
	}
	if time.Now().After(rec.createdAt.Add(TokenTTL)) {
		return "", 0, ErrTokenExpired
	}

	newRec, signed, err := s.mintTokenLocked()
	if err != nil {
		return "", 0, err
	}
	rec.revoked = true
	logger.Logger.Info().Str("old_token_id", rec.id).Str("new_token_id", newRec.id).Msg("token refreshed")
	return signed, TokenTTL, nil
}

// ListTokens returns the admin-facing view of every non-revoked token.
func (s *AuthStore) ListTokens() []TokenInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TokenInfo, 0, len(s.tokens))
	for _, rec := range s.tokens {
		if rec.revoked {
			continue
		}
		out = append(out, TokenInfo{ID: rec.id, CreatedAt: rec.createdAt, LastUsed: rec.lastUsed})
	}
	return out
}

// RevokeToken revokes the token with the given id, returning false if no
// such live token exists.
func (s *AuthStore) RevokeToken(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.tokens {
		if rec.id == id && !rec.revoked {
			rec.revoked = true
			return true
		}
	}
	return false
}
