package handler

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName      = "Editdesk Backend API"
	readinessTimeout = 2 * time.Second
)

// Check tests one dependency for readiness
type Check func(ctx context.Context) error

// SystemHandler serves liveness, readiness and build information. It needs
// no caller identity.
type SystemHandler struct {
	BaseHandler
	started time.Time
	version string
	checks  map[string]Check
}

func NewSystemHandler(version string, checks map[string]Check) *SystemHandler {
	if checks == nil {
		checks = map[string]Check{}
	}
	return &SystemHandler{started: time.Now(), version: version, checks: checks}
}

type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse maps each dependency to "ok" or its failure
type ReadinessResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      serviceName,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// Ping handles GET /system/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{Message: "pong", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// Ready handles GET /system/ready. The checks run concurrently under one
// deadline and any failure answers 503.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		g      errgroup.Group
		report = ReadinessResponse{Ready: true, Checks: make(map[string]string, len(h.checks))}
	)
	for name, check := range h.checks {
		g.Go(func() error {
			result := "ok"
			if err := check(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			report.Checks[name] = result
			report.Ready = report.Ready && result == "ok"
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: report.Ready, Data: report})
}
