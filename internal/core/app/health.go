// # internal/core/app/health.go
package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.Index == nil {
		status.Status = "degraded"
		status.Components["index"] = "missing"
	} else {
		status.Components["index"] = fmt.Sprintf("ok (%d files, %d symbols)", s.app.Index.FileCount(), len(s.app.Index.Symbols()))
	}

	if s.app.Validator != nil {
		status.Components["validator"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["validator"] = "missing"
	}

	if s.app.activeWatcher != nil {
		status.Components["watcher"] = "ok"
	}

	return status
}
