package server

import (
	"context"
	"sort"
	"sync"

	"github.com/akash768145s/BlockCred-sub000/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a ping function to HealthService.
type ProbeFunc func(ctx context.Context) error

// Probe implements HealthService.
func (f ProbeFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// GraphHealthService verifies graph connectivity as part of health checks.
type GraphHealthService struct {
	Client graph.Client
}

// Probe implements the HealthService interface.
func (s GraphHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.VerifyConnectivity(ctx)
}

// HealthReport is the outcome of running every named probe.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Healthy reports whether every probe passed.
func (h HealthReport) Healthy() bool {
	return h.Status == "ok"
}

// RunProbes executes the probes concurrently.
func RunProbes(ctx context.Context, probes map[string]HealthService) HealthReport {
	report := HealthReport{Status: "ok", Checks: make(map[string]string, len(probes))}

	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, probe HealthService) {
			defer wg.Done()
			results[i] = probe.Probe(ctx)
		}(i, probes[name])
	}
	wg.Wait()

	for i, name := range names {
		if results[i] != nil {
			report.Status = "degraded"
			report.Checks[name] = results[i].Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
