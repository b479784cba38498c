package causality

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Sale is the directory's view of an auction event
type Sale struct {
	// ID is the canonical identifier
	ID   string
	Slug string
	Name string
}

// Viewer is the authenticated caller, derived from an access credential
type Viewer struct {
	UserID       string
	IsAdmin      bool
	PaddleNumber string
}

// BidderRecord is a viewer's registration to bid in a sale
type BidderRecord struct {
	BidderID string
	SaleID   string
}

// DirectoryClient is the contract consumed from the backend directory
// service. Implementations report unresolvable sales with ErrSaleNotFound
// and I/O failures with ErrBackendUnavailable.
type DirectoryClient interface {
	// ResolveSale accepts a canonical identifier or a slug.
	ResolveSale(ctx context.Context, reference string) (*Sale, error)
	// ResolveViewer returns nil, nil for an absent or rejected credential.
	ResolveViewer(ctx context.Context, credential string) (*Viewer, error)
	// ListBidderRecords returns the viewer's registrations across sales.
	ListBidderRecords(ctx context.Context, credential string) ([]BidderRecord, error)
}

// Config holds causality token options
type Config interface {
	GetSigningKey() string
	GetPreviousSigningKeys() []string
	GetAudience() string
	GetDirectoryURL() string
	GetDirectoryTimeout() time.Duration
	GetAddr() string
	GetTokenPath() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] CAUSALITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] CAUSALITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] CAUSALITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] CAUSALITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the printf logger used when none is provided
func DefaultLogger() Logger {
	return defLogger{}
}
