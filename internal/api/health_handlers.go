package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/sync/errgroup"
)

// Pinger is a database that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentCounter is a search index that can report its size.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// healthCheckTimeout bounds each component probe.
const healthCheckTimeout = 2 * time.Second

// Component statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	checks := map[string]func(context.Context) ComponentHealth{
		"snapshots": s.checkSnapshots,
		"database":  s.checkDatabase,
		"search":    s.checkSearchIndex,
	}

	var mu sync.Mutex
	components := make(map[string]ComponentHealth, len(checks))

	// Probes never fail the group; each reports its own status.
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, healthCheckTimeout)
			defer cancel()
			h := check(cctx)

			mu.Lock()
			components[name] = h
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overallStatus(components),
			Components: components,
		},
	}, nil
}

// overallStatus is unhealthy if any component is, otherwise degraded if any component is.
func overallStatus(components map[string]ComponentHealth) string {
	overall := statusHealthy
	for _, c := range components {
		switch c.Status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusDegraded:
			overall = statusDegraded
		}
	}
	return overall
}

// checkSnapshots verifies the snapshot repository can be listed.
func (s *Server) checkSnapshots(ctx context.Context) ComponentHealth {
	if s.snapshots == nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Message: "snapshot repository not configured",
		}
	}

	start := time.Now()
	infos, err := s.snapshots.List(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "snapshot repository unreadable",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
		Message: pluralize(len(infos), "stored backup", "stored backups"),
	}
}

// checkDatabase verifies SQLite is accessible.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	// Handle nil database (e.g., in tests)
	if s.database == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "database not configured",
		}
	}

	start := time.Now()
	err := s.database.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "database ping failed",
		}
	}

	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex(_ context.Context) ComponentHealth {
	if s.index == nil {
		return ComponentHealth{
			Status:  statusDegraded,
			Message: "search index not configured",
		}
	}

	start := time.Now()
	docCount, err := s.index.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  statusUnhealthy,
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}

	// An empty catalog is normal on a fresh server.
	return ComponentHealth{
		Status:  statusHealthy,
		Latency: latency.String(),
		Message: pluralize(int(docCount), "indexed title", "indexed titles"),
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
