package handler

import (
	"crypto/subtle"
	"net/http"
	"runtime"
	"time"

	"raffle-storefront/internal/service"
	"raffle-storefront/pkg/apierror"
	"raffle-storefront/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	storefront *service.Storefront
	activity   *service.ActivityService
	loginKey   string
	dbType     string // sqlite, mysql or postgres
	startTime  time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	storefront *service.Storefront,
	activity *service.ActivityService,
	loginKey string,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		storefront: storefront,
		activity:   activity,
		loginKey:   loginKey,
		dbType:     dbType,
		startTime:  time.Now(),
	}
}

// RequireKey rejects admin requests without a matching X-Login-Key. An
// empty configured key disables the admin routes.
func (h *AdminHandler) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.loginKey == "" {
			response.Error(w, apierror.Forbidden("admin routes are disabled"))
			return
		}
		key := r.Header.Get("X-Login-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.loginKey)) != 1 {
			response.Error(w, apierror.Unauthorized("invalid login key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	if h.storefront != nil {
		stats["storefront"] = h.storefront.Stats()
	}

	// Journal stats, including the buffered backlog
	if h.activity != nil {
		journal, err := h.activity.Stats(ctx)
		if err == nil {
			journal["status"] = "connected"
			stats["activity"] = journal
		} else {
			stats["activity"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["activity"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
