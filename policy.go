package causality

// ClaimDecision is the outcome of the role policy for one request
type ClaimDecision struct {
	Requested Role
	Role      Role
	UserID    *string
	SaleID    string
	BidderID  *string
}

// Downgraded reports whether the granted role is below the requested one
func (d ClaimDecision) Downgraded() bool {
	return d.Role != d.Requested
}

// Decide maps a requested role, the canonical sale id, the optional viewer
// and the viewer's bidder records to the granted role. Operator requests from
// non-admin or anonymous callers fail with ErrUnauthorized; a participant
// request without a matching registration is downgraded to observer. Bidder
// records are only consulted for participant requests; the first
// record matching saleID wins.
func Decide(requested Role, saleID string, viewer *Viewer, records []BidderRecord) (ClaimDecision, error) {
	decision := ClaimDecision{
		Requested: requested,
		Role:      RoleObserver,
		SaleID:    saleID,
	}

	if viewer != nil {
		decision.UserID = stringPtr(viewer.UserID)
	}

	switch requested {
	case RoleOperator:
		if viewer == nil || !viewer.IsAdmin {
			return ClaimDecision{}, ErrUnauthorized
		}
		decision.Role = RoleOperator
	case RoleParticipant:
		if viewer == nil {
			return decision, nil
		}
		if record, ok := findBidderRecord(records, saleID); ok {
			decision.Role = RoleParticipant
			decision.BidderID = stringPtr(record.BidderID)
		}
	case RoleObserver:
	default:
		return ClaimDecision{}, derive(ErrInvalidRequest, "unknown role requested", nil, map[string]any{
			"role": string(requested),
		})
	}

	return decision, nil
}

func findBidderRecord(records []BidderRecord, saleID string) (BidderRecord, bool) {
	for _, record := range records {
		if record.SaleID == saleID {
			return record, true
		}
	}
	return BidderRecord{}, false
}

func stringPtr(s string) *string {
	return &s
}
