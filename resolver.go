package causality

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxSaleReferenceLength = 256

// TokenRequest is what a caller asks for. Credential is the viewer's access
// token and may be empty for anonymous callers.
type TokenRequest struct {
	Role          Role
	SaleReference string
	Credential    string
}

// Validate checks the request shape
func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Role,
			validation.Required,
			validation.In(RoleObserver, RoleParticipant, RoleOperator),
		),
		validation.Field(
			&r.SaleReference,
			validation.Required,
			validation.Length(1, maxSaleReferenceLength),
		),
	)
}

// Grant is a successful resolution
type Grant struct {
	Token  string
	Claims *ClaimSet
	Trace  []ResolutionState
}

// ResolverOption customizes resolver construction.
type ResolverOption func(*Resolver)

// WithResolverLogger overrides the resolver logger
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverActivitySink sets the ActivitySink used to publish grant and denial events.
func WithResolverActivitySink(sink ActivitySink) ResolverOption {
	return func(r *Resolver) {
		r.activity = normalizeActivitySink(sink)
	}
}

// WithResolverMetrics records issuance metrics
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// WithResolverClock injects a custom clock (useful for tests).
func WithResolverClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// Resolver issues causality tokens. It holds no per-request state and is
// safe for concurrent use.
type Resolver struct {
	directory DirectoryClient
	tokens    TokenService
	logger    Logger
	activity  ActivitySink
	metrics   *Metrics
	now       func() time.Time
}

// NewResolver returns a resolver backed by the given directory client and
// token service.
func NewResolver(directory DirectoryClient, tokens TokenService, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		directory: directory,
		tokens:    tokens,
		logger:    defLogger{},
		activity:  noopActivitySink{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Resolve decides the role the caller is entitled to and returns a signed
// token for it. Sale and viewer lookups run concurrently; bidder records are
// only fetched for participant requests from an authenticated viewer.
func (r *Resolver) Resolve(ctx context.Context, req TokenRequest) (*Grant, error) {
	req.SaleReference = strings.TrimSpace(req.SaleReference)
	req.Credential = strings.TrimSpace(req.Credential)

	res := newResolution()

	if err := req.Validate(); err != nil {
		return nil, r.failed(ctx, res, req, nil, derive(ErrInvalidRequest, "", err, nil))
	}

	if err := res.advance(StateSaleResolution); err != nil {
		return nil, r.failed(ctx, res, req, nil, err)
	}

	var (
		sale   *Sale
		viewer *Viewer
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		sale, err = r.resolveSale(gctx, req.SaleReference)
		return err
	})

	if req.Credential != "" {
		g.Go(func() error {
			var err error
			viewer, err = r.resolveViewer(gctx, req.Credential)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, r.failed(ctx, res, req, viewer, err)
	}

	var records []BidderRecord

	if req.Credential != "" {
		if err := res.advance(StateViewerResolution); err != nil {
			return nil, r.failed(ctx, res, req, viewer, err)
		}

		if req.Role == RoleParticipant && viewer != nil {
			if err := res.advance(StateBidderLookup); err != nil {
				return nil, r.failed(ctx, res, req, viewer, err)
			}

			var err error
			records, err = r.listBidderRecords(ctx, req.Credential)
			if err != nil {
				return nil, r.failed(ctx, res, req, viewer, err)
			}
		}
	}

	if err := res.advance(StatePolicyDecision); err != nil {
		return nil, r.failed(ctx, res, req, viewer, err)
	}

	decision, err := Decide(req.Role, sale.ID, viewer, records)
	if err != nil {
		return nil, r.failed(ctx, res, req, viewer, err)
	}

	if err := res.advance(StateEncode); err != nil {
		return nil, r.failed(ctx, res, req, viewer, err)
	}

	token, claims, err := r.tokens.Issue(decision)
	if err != nil {
		return nil, r.failed(ctx, res, req, viewer, err)
	}

	if err := res.advance(StateDone); err != nil {
		return nil, r.failed(ctx, res, req, viewer, err)
	}

	r.granted(ctx, req, decision)

	return &Grant{
		Token:  token,
		Claims: claims,
		Trace:  res.Trace(),
	}, nil
}

// Token is a convenience wrapper around Resolve returning only the token
func (r *Resolver) Token(ctx context.Context, req TokenRequest) (string, error) {
	grant, err := r.Resolve(ctx, req)
	if err != nil {
		return "", err
	}
	return grant.Token, nil
}

func (r *Resolver) resolveSale(ctx context.Context, reference string) (*Sale, error) {
	start := time.Now()
	sale, err := r.directory.ResolveSale(ctx, reference)
	if err == nil && (sale == nil || sale.ID == "") {
		err = derive(ErrSaleNotFound, "", nil, map[string]any{"reference": reference})
	}
	err = BackendError("resolve_sale", err)
	r.metrics.observeDirectory("resolve_sale", start, err)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *Resolver) resolveViewer(ctx context.Context, credential string) (*Viewer, error) {
	start := time.Now()
	viewer, err := r.directory.ResolveViewer(ctx, credential)
	err = BackendError("resolve_viewer", err)
	r.metrics.observeDirectory("resolve_viewer", start, err)
	if err != nil {
		return nil, err
	}
	if viewer != nil && viewer.UserID == "" {
		return nil, nil
	}
	return viewer, nil
}

func (r *Resolver) listBidderRecords(ctx context.Context, credential string) ([]BidderRecord, error) {
	start := time.Now()
	records, err := r.directory.ListBidderRecords(ctx, credential)
	err = BackendError("list_bidder_records", err)
	r.metrics.observeDirectory("list_bidder_records", start, err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Resolver) granted(ctx context.Context, req TokenRequest, decision ClaimDecision) {
	r.metrics.observeGrant(decision)

	eventType := ActivityEventTokenGranted
	if decision.Downgraded() {
		eventType = ActivityEventTokenDowngraded
		r.logger.Info("causality role downgraded from %s to %s for sale %s", decision.Requested, decision.Role, decision.SaleID)
	} else {
		r.logger.Debug("causality role %s granted for sale %s", decision.Role, decision.SaleID)
	}

	event := ActivityEvent{
		EventType: eventType,
		Requested: req.Role,
		Granted:   decision.Role,
		SaleID:    decision.SaleID,
		Reference: req.SaleReference,
	}
	if decision.UserID != nil {
		event.UserID = *decision.UserID
	}
	r.record(ctx, event)
}

func (r *Resolver) failed(ctx context.Context, res *resolution, req TokenRequest, viewer *Viewer, err error) error {
	from := res.state
	res.fail(err)

	reason := failureReason(err)
	r.metrics.observeFailure(reason)

	eventType := ActivityEventTokenFailed
	switch {
	case IsUnauthorized(err):
		eventType = ActivityEventTokenDenied
		r.logger.Info("causality %s request denied for sale %s", req.Role, req.SaleReference)
	case IsBackendUnavailable(err):
		r.logger.Error("causality request failed during %s: %v", from, err)
	default:
		r.logger.Debug("causality request failed during %s: %v", from, err)
	}

	event := ActivityEvent{
		EventType: eventType,
		Requested: req.Role,
		Reference: req.SaleReference,
		Reason:    reason,
		Metadata:  map[string]any{"state": string(from)},
	}
	if viewer != nil {
		event.UserID = viewer.UserID
	}
	r.record(ctx, event)

	return err
}

func (r *Resolver) record(ctx context.Context, event ActivityEvent) {
	event.ID = uuid.NewString()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}
	if err := r.activity.Record(ctx, event); err != nil {
		r.logger.Error("failed to record causality activity %s: %v", event.EventType, err)
	}
}
