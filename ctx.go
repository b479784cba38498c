package causality

import "context"

var claimsCtxKey = &contextKey{"causality-claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the ClaimSet in the given context
func WithClaimsContext(ctx context.Context, claims *ClaimSet) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the ClaimSet from the standard context
func ClaimsFromContext(ctx context.Context) (*ClaimSet, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(claimsCtxKey).(*ClaimSet)
	return raw, ok && raw != nil
}

// CanBid reports whether the claims in ctx admit bidding on saleID
func CanBid(ctx context.Context, saleID string) bool {
	claims, _ := ClaimsFromContext(ctx)
	return claims.CanBid(saleID)
}

// CanOperate reports whether the claims in ctx admit running saleID
func CanOperate(ctx context.Context, saleID string) bool {
	claims, _ := ClaimsFromContext(ctx)
	return claims.CanOperate(saleID)
}
