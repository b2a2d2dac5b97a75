package scanner

import (
	"context"
	"fmt"
	"time"

	"ArxivDigest/internal/domain"
)

// Request carries all parameters required to scan one category listing.
type Request struct {
	Category string
	Day      time.Time
}

// Listing is the result of a scan: the papers and the date the site printed
// on the listing (empty when the page did not carry one).
type Listing struct {
	Date   string
	Papers []domain.Paper
}

// Scanner captures a single listing strategy implementation.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) (Listing, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
