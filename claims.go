package causality

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAudience is the audience the real-time auction service accepts
const DefaultAudience = "auctions"

// ClaimSet is the signed payload consumed by the real-time service. Null
// identifiers are encoded as JSON null, never omitted.
type ClaimSet struct {
	Audience string           `json:"aud"`
	WireRole string           `json:"role"`
	UserID   *string          `json:"userId"`
	SaleID   string           `json:"saleId"`
	BidderID *string          `json:"bidderId"`
	Issued   *jwt.NumericDate `json:"iat,omitempty"`
}

var _ jwt.Claims = (*ClaimSet)(nil)

// NewClaimSet builds the claim set for a decision
func NewClaimSet(audience string, decision ClaimDecision, issuedAt time.Time) *ClaimSet {
	claims := &ClaimSet{
		Audience: audience,
		WireRole: decision.Role.WireName(),
		UserID:   decision.UserID,
		SaleID:   decision.SaleID,
		BidderID: decision.BidderID,
	}
	if !issuedAt.IsZero() {
		claims.Issued = jwt.NewNumericDate(issuedAt)
	}
	return claims
}

// Role returns the internal role for the wire "role" claim
func (c *ClaimSet) Role() Role {
	role, _ := RoleFromWire(c.WireRole)
	return role
}

// Decision returns the claim fields as a ClaimDecision
func (c *ClaimSet) Decision() ClaimDecision {
	role := c.Role()
	return ClaimDecision{
		Requested: role,
		Role:      role,
		UserID:    c.UserID,
		SaleID:    c.SaleID,
		BidderID:  c.BidderID,
	}
}

// CanWatch reports whether the token admits the viewer to saleID's channel
func (c *ClaimSet) CanWatch(saleID string) bool {
	return c != nil && c.SaleID == saleID && c.Role().IsValid()
}

// CanBid reports whether the token carries a bidder identity on saleID
func (c *ClaimSet) CanBid(saleID string) bool {
	return c.CanWatch(saleID) && c.Role() == RoleParticipant && c.BidderID != nil
}

// CanOperate reports whether the token was issued to an operator of saleID
func (c *ClaimSet) CanOperate(saleID string) bool {
	return c.CanWatch(saleID) && c.Role() == RoleOperator
}

// IssuedAt returns the issued at time
func (c *ClaimSet) IssuedAt() time.Time {
	if c.Issued != nil {
		return c.Issued.Time
	}
	return time.Time{}
}

// GetAudience implements jwt.Claims
func (c *ClaimSet) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// GetIssuedAt implements jwt.Claims
func (c *ClaimSet) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.Issued, nil
}

// GetExpirationTime implements jwt.Claims; causality tokens carry no exp.
func (c *ClaimSet) GetExpirationTime() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetNotBefore implements jwt.Claims
func (c *ClaimSet) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims
func (c *ClaimSet) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims
func (c *ClaimSet) GetSubject() (string, error) {
	if c.UserID == nil {
		return "", nil
	}
	return *c.UserID, nil
}
