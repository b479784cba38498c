package causality

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService signs causality claim sets and verifies tokens issued with
// the shared secret.
type TokenService interface {
	Sign(decision ClaimDecision) (string, error)
	Issue(decision ClaimDecision) (string, *ClaimSet, error)
	SignClaims(claims *ClaimSet) (string, error)
	Validate(tokenString string) (*ClaimSet, error)
}

// TokenServiceOption customizes a TokenServiceImpl
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects the clock used for the iat claim.
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithVerificationKeys adds retired secrets accepted by Validate but never
// used for signing.
func WithVerificationKeys(keys ...[]byte) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		for _, key := range keys {
			if len(key) > 0 {
				ts.verificationKeys = append(ts.verificationKeys, key)
			}
		}
	}
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey       []byte
	verificationKeys [][]byte
	audience         string
	logger           Logger
	now              func() time.Time
	validator        TokenValidator
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, audience string, logger Logger, opts ...TokenServiceOption) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	if audience == "" {
		audience = DefaultAudience
	}

	ts := &TokenServiceImpl{
		signingKey: signingKey,
		audience:   audience,
		logger:     logger,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	validators := make([]TokenValidator, 0, len(ts.verificationKeys)+1)
	validators = append(validators, ts.keyValidator(ts.signingKey))
	for _, key := range ts.verificationKeys {
		validators = append(validators, ts.keyValidator(key))
	}
	ts.validator = NewMultiTokenValidator(validators...)

	return ts
}

// Sign encodes a decision with the current time as iat
func (ts *TokenServiceImpl) Sign(decision ClaimDecision) (string, error) {
	token, _, err := ts.Issue(decision)
	return token, err
}

// Issue encodes a decision and returns the token with the claims it carries
func (ts *TokenServiceImpl) Issue(decision ClaimDecision) (string, *ClaimSet, error) {
	claims := NewClaimSet(ts.audience, decision, ts.now())
	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// SignClaims signs a claim set after checking its invariants. The output is
// deterministic for identical claims.
func (ts *TokenServiceImpl) SignClaims(claims *ClaimSet) (string, error) {
	if len(ts.signingKey) == 0 {
		return "", errors.New("signing key must not be empty", errors.CategoryInternal)
	}

	if err := guardClaims(claims); err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign causality JWT")
	}

	return signedString, nil
}

// Validate parses and verifies a token string, returning its claims
func (ts *TokenServiceImpl) Validate(tokenString string) (*ClaimSet, error) {
	return ts.validator.Validate(tokenString)
}

func (ts *TokenServiceImpl) keyValidator(key []byte) TokenValidator {
	return TokenValidatorFunc(func(tokenString string) (*ClaimSet, error) {
		token, err := jwt.ParseWithClaims(tokenString, &ClaimSet{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				ts.logger.Error("token validation encountered unexpected signing method: %v", t.Header["alg"])
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		}, jwt.WithAudience(ts.audience))

		if err != nil {
			return nil, derive(ErrTokenMalformed, "", err, nil)
		}

		claims, ok := token.Claims.(*ClaimSet)
		if !ok || !token.Valid {
			return nil, ErrTokenMalformed
		}

		if err := guardClaims(claims); err != nil {
			return nil, err
		}

		return claims, nil
	})
}
