package causality_test

import (
	"testing"

	"github.com/goliatone/go-causality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestDecide(t *testing.T) {
	registered := []causality.BidderRecord{
		{BidderID: "old-bidder", SaleID: "past-sale"},
		{BidderID: "bidder1", SaleID: "foo"},
		{BidderID: "bidder-dup", SaleID: "foo"},
	}

	tests := []struct {
		name       string
		role       causality.Role
		viewer     *causality.Viewer
		records    []causality.BidderRecord
		want       causality.ClaimDecision
		wantErr    bool
		downgraded bool
	}{
		{
			name:    "operator requires admin",
			role:    causality.RoleOperator,
			viewer:  viewerCraig,
			wantErr: true,
		},
		{
			name:    "operator denied for anonymous",
			role:    causality.RoleOperator,
			wantErr: true,
		},
		{
			name:   "operator granted for admin",
			role:   causality.RoleOperator,
			viewer: viewerAdmin,
			want: causality.ClaimDecision{
				Requested: causality.RoleOperator,
				Role:      causality.RoleOperator,
				UserID:    strPtr("admin"),
				SaleID:    "foo",
			},
		},
		{
			name: "anonymous participant observes",
			role: causality.RoleParticipant,
			want: causality.ClaimDecision{
				Requested: causality.RoleParticipant,
				Role:      causality.RoleObserver,
				SaleID:    "foo",
			},
			downgraded: true,
		},
		{
			name:    "registered participant bids with first matching record",
			role:    causality.RoleParticipant,
			viewer:  viewerCraig,
			records: registered,
			want: causality.ClaimDecision{
				Requested: causality.RoleParticipant,
				Role:      causality.RoleParticipant,
				UserID:    strPtr("craig"),
				SaleID:    "foo",
				BidderID:  strPtr("bidder1"),
			},
		},
		{
			name:    "unregistered participant is downgraded",
			role:    causality.RoleParticipant,
			viewer:  viewerCraig,
			records: registered[:1],
			want: causality.ClaimDecision{
				Requested: causality.RoleParticipant,
				Role:      causality.RoleObserver,
				UserID:    strPtr("craig"),
				SaleID:    "foo",
			},
			downgraded: true,
		},
		{
			name:    "observer ignores bidder records",
			role:    causality.RoleObserver,
			viewer:  viewerCraig,
			records: registered,
			want: causality.ClaimDecision{
				Requested: causality.RoleObserver,
				Role:      causality.RoleObserver,
				UserID:    strPtr("craig"),
				SaleID:    "foo",
			},
		},
		{
			name: "anonymous observer",
			role: causality.RoleObserver,
			want: causality.ClaimDecision{
				Requested: causality.RoleObserver,
				Role:      causality.RoleObserver,
				SaleID:    "foo",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := causality.Decide(tt.role, "foo", tt.viewer, tt.records)

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, causality.IsUnauthorized(err))
				assert.Equal(t, causality.ClaimDecision{}, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.downgraded, got.Downgraded())
			assert.True(t, got.Role.IsAtMost(tt.role))
		})
	}
}

func TestDecide_UnknownRole(t *testing.T) {
	_, err := causality.Decide(causality.Role("ROOT"), "foo", viewerAdmin, nil)

	require.Error(t, err)
	assert.True(t, causality.IsInvalidRequest(err))
}

func TestDecide_NeverEscalates(t *testing.T) {
	viewers := []*causality.Viewer{nil, viewerCraig, viewerAdmin}
	records := [][]causality.BidderRecord{nil, {{BidderID: "b", SaleID: "foo"}}}

	for _, role := range causality.GetAllRoles() {
		for _, viewer := range viewers {
			for _, recs := range records {
				got, err := causality.Decide(role, "foo", viewer, recs)
				if err != nil {
					continue
				}
				assert.True(t, got.Role.IsAtMost(role), "role %s escalated to %s", role, got.Role)
				if got.Role == causality.RoleObserver {
					assert.Nil(t, got.BidderID)
				}
				if got.Role == causality.RoleParticipant {
					assert.NotNil(t, got.BidderID)
				}
			}
		}
	}
}
