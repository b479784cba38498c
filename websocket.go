package causality

import (
	"context"
	"strings"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface so the
// real-time channel can admit viewers holding a causality token
type WSTokenValidator struct {
	tokens TokenValidator
}

// NewWSTokenValidator creates a WebSocket token validator over tokens
func NewWSTokenValidator(tokens TokenValidator) *WSTokenValidator {
	return &WSTokenValidator{
		tokens: tokens,
	}
}

// Validate verifies a causality token and returns WebSocket auth claims
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	if w == nil || w.tokens == nil {
		return nil, ErrTokenMalformed
	}

	claims, err := w.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter exposes a ClaimSet through go-router's WSAuthClaims.
// Resources are sale ids: every role may read its own sale, bidders with a
// bidder id may edit and create (place bids), and operators may delete.
type WSAuthClaimsAdapter struct {
	claims *ClaimSet
}

// Claims returns the wrapped claim set
func (w *WSAuthClaimsAdapter) Claims() *ClaimSet {
	return w.claims
}

// Subject returns the viewer id, empty for anonymous observers
func (w *WSAuthClaimsAdapter) Subject() string {
	sub, _ := w.claims.GetSubject()
	return sub
}

func (w *WSAuthClaimsAdapter) UserID() string {
	return w.Subject()
}

// Role returns the wire role, e.g. "bidder"
func (w *WSAuthClaimsAdapter) Role() string {
	return w.claims.WireRole
}

func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.claims.CanWatch(resource)
}

func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.claims.CanBid(resource)
}

func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.claims.CanBid(resource)
}

func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.claims.CanOperate(resource)
}

// HasRole accepts either the wire name ("bidder") or the role name ("PARTICIPANT")
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	want, ok := roleFromAny(role)
	return ok && w.claims.Role() == want
}

func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	want, ok := roleFromAny(minRole)
	return ok && w.claims.Role().IsAtLeast(want)
}

func roleFromAny(name string) (Role, bool) {
	if role, ok := RoleFromWire(strings.ToLower(strings.TrimSpace(name))); ok {
		return role, true
	}
	return ParseRole(name)
}

// NewWSAuthMiddleware creates go-router WebSocket authentication middleware
// that validates causality tokens with tokens.
func NewWSAuthMiddleware(tokens TokenValidator, config ...router.WSAuthConfig) router.WebSocketMiddleware {
	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = NewWSTokenValidator(tokens)

	return router.NewWSAuth(cfg)
}

// WSClaimsFromContext returns the causality claims stored by the WebSocket
// auth middleware. Claims from other validators are not reported.
func WSClaimsFromContext(ctx context.Context) (*ClaimSet, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok && adapter.claims != nil {
		return adapter.claims, true
	}

	return nil, false
}
