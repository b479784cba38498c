package causality

import "fmt"

// guardClaims rejects claim sets that would hand out a role the
// real-time service cannot honor.
func guardClaims(claims *ClaimSet) error {
	if claims == nil {
		return claimViolation("claims", "claims must not be nil")
	}

	if claims.Audience == "" {
		return claimViolation("aud", "audience is required")
	}

	if claims.SaleID == "" {
		return claimViolation("saleId", "sale id is required")
	}

	role, ok := RoleFromWire(claims.WireRole)
	if !ok {
		return claimViolation("role", fmt.Sprintf("unknown role %q", claims.WireRole))
	}

	switch role {
	case RoleObserver:
		if claims.BidderID != nil {
			return claimViolation("bidderId", "observer must not carry a bidder id")
		}
	case RoleParticipant:
		if claims.BidderID == nil || *claims.BidderID == "" {
			return claimViolation("bidderId", "bidder requires a bidder id")
		}
		if claims.UserID == nil {
			return claimViolation("userId", "bidder requires a user id")
		}
	case RoleOperator:
		if claims.UserID == nil {
			return claimViolation("userId", "operator requires a user id")
		}
		if claims.BidderID != nil {
			return claimViolation("bidderId", "operator must not carry a bidder id")
		}
	}

	return nil
}

func claimViolation(field, reason string) error {
	return derive(ErrInvalidClaims, fmt.Sprintf("invalid claim %s: %s", field, reason), nil, map[string]any{
		"claim": field,
	})
}
