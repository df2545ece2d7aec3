// Package handler provides HTTP handlers for the airquery API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/airquery/airquery/internal/api/models"
	"github.com/airquery/airquery/internal/api/response"
	"github.com/airquery/airquery/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// ProviderHealthSource reports upstream provider health.
type ProviderHealthSource interface {
	All() []resilience.ProviderHealth
}

// Dependency is an in-process subsystem checked by readiness and status.
type Dependency struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds configuration for the ops handler.
type OpsConfig struct {
	Version      string
	BuildTime    string
	Providers    ProviderHealthSource
	Dependencies []Dependency
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing dependency makes the
// instance unready (503). Upstream providers do not affect readiness.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkDependencies(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status == models.HealthStatusFail {
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}
	if len(subsystems) > 0 {
		health.Details = map[string]any{"subsystems": subsystems}
	}

	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
// Always 200; the body carries the aggregate status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Version:    h.cfg.Version,
		Subsystems: h.checkDependencies(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Providers != nil {
		for _, health := range h.cfg.Providers.All() {
			status.Providers = append(status.Providers, providerStatus(health))
		}
	}

	for _, s := range status.Subsystems {
		status.Status = worst(status.Status, s.Status)
	}
	for _, p := range status.Providers {
		// An unhealthy upstream degrades the service rather than failing it.
		if p.Status != models.HealthStatusOK {
			status.Status = worst(status.Status, models.HealthStatusDegraded)
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkDependencies(ctx context.Context) []models.SubsystemStatus {
	subsystems := make([]models.SubsystemStatus, 0, len(h.cfg.Dependencies))
	for _, dep := range h.cfg.Dependencies {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := dep.Check(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: dep.Name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		subsystems = append(subsystems, s)
	}
	return subsystems
}

func providerStatus(health resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            health.Name,
		Status:              models.HealthStatusOK,
		CircuitState:        health.State.String(),
		ConsecutiveFailures: health.ConsecutiveFailures,
		LastSuccessAt:       models.NewTimestamp(health.LastSuccessAt),
		LastFailureAt:       models.NewTimestamp(health.LastFailureAt),
		StateChangedAt:      models.NewTimestamp(health.StateChangedAt),
	}
	switch health.State {
	case gobreaker.StateOpen:
		ps.Status = models.HealthStatusFail
	case gobreaker.StateHalfOpen:
		ps.Status = models.HealthStatusDegraded
	}
	if health.LastError != "" {
		msg := health.LastError
		ps.Message = &msg
	}
	return ps
}

var severity = map[models.HealthStatus]int{
	models.HealthStatusOK:       0,
	models.HealthStatusDegraded: 1,
	models.HealthStatusFail:     2,
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	if severity[b] > severity[a] {
		return b
	}
	return a
}
