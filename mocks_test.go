package causality_test

import (
	"context"
	"sync"

	"github.com/goliatone/go-causality"
	"github.com/stretchr/testify/mock"
)

// MockDirectory implements causality.DirectoryClient
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) ResolveSale(ctx context.Context, reference string) (*causality.Sale, error) {
	args := m.Called(ctx, reference)
	sale, _ := args.Get(0).(*causality.Sale)
	return sale, args.Error(1)
}

func (m *MockDirectory) ResolveViewer(ctx context.Context, credential string) (*causality.Viewer, error) {
	args := m.Called(ctx, credential)
	viewer, _ := args.Get(0).(*causality.Viewer)
	return viewer, args.Error(1)
}

func (m *MockDirectory) ListBidderRecords(ctx context.Context, credential string) ([]causality.BidderRecord, error) {
	args := m.Called(ctx, credential)
	records, _ := args.Get(0).([]causality.BidderRecord)
	return records, args.Error(1)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// activityRecorder collects activity events
type activityRecorder struct {
	mu     sync.Mutex
	events []causality.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event causality.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) Events() []causality.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]causality.ActivityEvent, len(r.events))
	copy(out, r.events)
	return out
}

var (
	saleFoo     = &causality.Sale{ID: "foo", Slug: "slug", Name: "Foo sale"}
	viewerCraig = &causality.Viewer{UserID: "craig", PaddleNumber: "123"}
	viewerAdmin = &causality.Viewer{UserID: "admin", IsAdmin: true}
)

// directoryFixture wires the directory used by the craig scenarios: every
// sale reference resolves to "foo" and craig is registered as bidder1.
func directoryFixture() *MockDirectory {
	dir := &MockDirectory{}
	dir.On("ResolveSale", mock.Anything, mock.Anything).Return(saleFoo, nil)
	dir.On("ResolveViewer", mock.Anything, "craig-token").Return(viewerCraig, nil)
	dir.On("ResolveViewer", mock.Anything, "admin-token").Return(viewerAdmin, nil)
	dir.On("ListBidderRecords", mock.Anything, "craig-token").Return([]causality.BidderRecord{
		{BidderID: "bidder1", SaleID: "foo"},
	}, nil)
	return dir
}
