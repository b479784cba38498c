package causality

// TokenValidator verifies a causality token and returns its sale-scoped
// claims. The HTTP and WebSocket middleware for the real-time channel depend
// on it rather than on TokenService, so consumers can verify tokens without
// holding a directory client or signing configuration.
type TokenValidator interface {
	Validate(tokenString string) (*ClaimSet, error)
}

// TokenValidatorFunc lets a plain function verify causality tokens, e.g. a
// stub admitting fixed claims in a channel test.
type TokenValidatorFunc func(tokenString string) (*ClaimSet, error)

// Validate treats a nil func as a malformed token.
func (f TokenValidatorFunc) Validate(tokenString string) (*ClaimSet, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// MultiTokenValidator accepts tokens signed with any of several HMAC secrets,
// which is how the signing secret is rotated without dropping viewers already
// connected to a sale. Validators run in order; a malformed result moves on to
// the next secret and any other error stops the scan.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator orders validators current secret first, skipping nil entries.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate returns the claims from the first secret that verifies the token.
func (m *MultiTokenValidator) Validate(tokenString string) (*ClaimSet, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if IsMalformedError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
