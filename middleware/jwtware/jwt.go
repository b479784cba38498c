// Package jwtware is go-router middleware for services consuming causality
// tokens, such as the real-time auction channel.
package jwtware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-causality"
	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization + ",query:token"
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")

	// ErrAccessDenied wraps every authorization failure after a valid token
	ErrAccessDenied = errors.New("access denied")
)

// ValidationListener is invoked after a token has been validated but before authorization checks.
type ValidationListener func(ctx router.Context, claims *causality.ClaimSet) error

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	// TokenValidator is required for token validation
	TokenValidator causality.TokenValidator

	// MinimumRole specifies the minimum role level required (uses role hierarchy)
	MinimumRole causality.Role
	// SaleParam names a route parameter that must match the saleId claim
	SaleParam string

	ValidationListeners []ValidationListener

	// ContextEnricher propagates claims to the standard context. Defaults to
	// causality.WithClaimsContext.
	ContextEnricher func(c context.Context, claims *causality.ClaimSet) context.Context
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		extractors := cfg.getExtractors()

		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawToken(ctx, extractors)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := cfg.runValidationListeners(ctx, claims); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := performAuthorizationChecks(ctx, claims, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)
			ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))

			return cfg.SuccessHandler(ctx)
		}
	}
}

// ClaimsFromContext returns the claims stored by the middleware
func ClaimsFromContext(ctx router.Context, key ...string) (*causality.ClaimSet, bool) {
	contextKey := "causality"
	if len(key) > 0 && key[0] != "" {
		contextKey = key[0]
	}
	claims, ok := ctx.Locals(contextKey).(*causality.ClaimSet)
	return claims, ok && claims != nil
}

func performAuthorizationChecks(ctx router.Context, claims *causality.ClaimSet, cfg Config) error {
	if cfg.MinimumRole != "" && !claims.Role().IsAtLeast(cfg.MinimumRole) {
		return fmt.Errorf("%w: minimum role '%s' required", ErrAccessDenied, cfg.MinimumRole.WireName())
	}

	if cfg.SaleParam != "" {
		if sale := ctx.Param(cfg.SaleParam); sale != claims.SaleID {
			return fmt.Errorf("%w: token not issued for sale '%s'", ErrAccessDenied, sale)
		}
	}

	return nil
}

func ExtractRawToken(ctx router.Context, extractors []JWTExtractor) (string, error) {
	var raw string
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return ctx.Status(StatusFor(err)).SendString(messageFor(err))
		}
	}

	if cfg.TokenValidator == nil {
		panic("CAUSALITY: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextEnricher == nil {
		cfg.ContextEnricher = causality.WithClaimsContext
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "causality"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

// StatusFor maps a middleware failure to the status the default handler sends
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrJWTMissingOrMalformed):
		return router.StatusBadRequest
	case errors.Is(err, ErrAccessDenied):
		return router.StatusForbidden
	default:
		return router.StatusUnauthorized
	}
}

func messageFor(err error) string {
	switch StatusFor(err) {
	case router.StatusBadRequest:
		return ErrJWTMissingOrMalformed.Error()
	case router.StatusForbidden:
		return "Unauthorized"
	default:
		return "Invalid token"
	}
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func (cfg *Config) runValidationListeners(ctx router.Context, claims *causality.ClaimSet) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

// GetExtractors parses a lookup such as "header:Authorization,query:token"
func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, jwtFromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(parts[1]))
		case "param":
			extractors = append(extractors, jwtFromParam(parts[1]))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(parts[1]))
		}
	}

	return extractors
}

type JWTExtractor func(ctx router.Context) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(ctx router.Context) (string, error) {
		a := ctx.GetString(header, "")
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(ctx router.Context) (string, error) {
		token := ctx.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
