package events

import (
	"context"

	"github.com/akash768145s/BlockCred-sub000/internal/domain"
)

// Invalidator drops cached state for a certificate.
type Invalidator interface {
	Invalidate(certID string)
}

// CacheSink invalidates cached verifications when a certificate changes.
type CacheSink struct {
	cache Invalidator
}

func NewCacheSink(cache Invalidator) *CacheSink {
	return &CacheSink{cache: cache}
}

func (s *CacheSink) Name() string { return "verify-cache" }

func (s *CacheSink) Handle(_ context.Context, ev domain.Event) error {
	switch ev.Name {
	case domain.EventCertificateIssued, domain.EventCertificateRevoked:
		s.cache.Invalidate(ev.Attr("certId"))
	}
	return nil
}

// Projector applies events to a read model.
type Projector interface {
	ApplyEvent(ctx context.Context, ev domain.Event) error
}

// ProjectionSink forwards events to a Projector.
type ProjectionSink struct {
	projector Projector
}

func NewProjectionSink(projector Projector) *ProjectionSink {
	return &ProjectionSink{projector: projector}
}

func (s *ProjectionSink) Name() string { return "graph" }

func (s *ProjectionSink) Handle(ctx context.Context, ev domain.Event) error {
	return s.projector.ApplyEvent(ctx, ev)
}
