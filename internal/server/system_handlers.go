package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/avramidis/tickernav/internal/database"
	"github.com/avramidis/tickernav/internal/reliability"
	"github.com/avramidis/tickernav/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves monitoring and operational endpoints.
type SystemHandlers struct {
	log          zerolog.Logger
	dataDir      string
	startupTime  time.Time
	watchlistsDB *database.DB
	cacheDB      *database.DB
	realtime     *scheduler.RealtimeNAV
	cron         *scheduler.Cron
	provider     RequestBudget
	backups      *reliability.BackupService
}

// NewSystemHandlers creates the system handlers. Provider and backups may be
// nil when the corresponding feature is not configured.
func NewSystemHandlers(
	dataDir string,
	watchlistsDB, cacheDB *database.DB,
	realtime *scheduler.RealtimeNAV,
	cron *scheduler.Cron,
	provider RequestBudget,
	backups *reliability.BackupService,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		log:          log.With().Str("handler", "system").Logger(),
		dataDir:      dataDir,
		startupTime:  time.Now(),
		watchlistsDB: watchlistsDB,
		cacheDB:      cacheDB,
		realtime:     realtime,
		cron:         cron,
		provider:     provider,
		backups:      backups,
	}
}

// RegisterRoutes mounts the system endpoints on the given router.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleStatus)
		r.Get("/databases", h.HandleDatabaseStats)
		r.Get("/jobs", h.HandleJobs)
		r.Post("/jobs/{name}/run", h.HandleRunJob)
		r.Get("/backups", h.HandleBackups)
		r.Post("/backups/run", h.HandleRunBackup)
	})
}

type healthResponse struct {
	Status    string            `json:"status"`
	Databases map[string]string `json:"databases"`
}

// HandleHealth reports liveness based on database reachability.
// GET /health
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Databases: map[string]string{}}
	status := http.StatusOK

	for _, db := range []*database.DB{h.watchlistsDB, h.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			resp.Databases[db.Name()] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Databases[db.Name()] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

type statusResponse struct {
	Status            string  `json:"status"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryPercent     float64 `json:"memory_percent"`
	Goroutines        int     `json:"goroutines"`
	HeapAllocMB       float64 `json:"heap_alloc_mb"`
	SchedulerRunning  bool    `json:"scheduler_running"`
	PendingWatchlists int     `json:"pending_watchlists"`
	NextBoundary      string  `json:"next_boundary"`
	RemainingRequests *int    `json:"remaining_requests,omitempty"`
}

// HandleStatus returns process and scheduler health.
// GET /api/system/status
func (h *SystemHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, memUsed := h.systemStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := statusResponse{
		Status:           "running",
		UptimeSeconds:    int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:       cpuAvg,
		MemoryPercent:    memUsed,
		Goroutines:       runtime.NumGoroutine(),
		HeapAllocMB:      float64(memStats.HeapAlloc) / 1024 / 1024,
		SchedulerRunning: h.realtime != nil && h.realtime.Running(),
		NextBoundary:     scheduler.NextBoundary(time.Now()).Format(time.RFC3339),
	}
	if h.realtime != nil {
		resp.PendingWatchlists = h.realtime.PendingCount()
	}
	if h.provider != nil {
		remaining := h.provider.GetRemainingRequests()
		resp.RemainingRequests = &remaining
	}

	writeJSON(w, resp)
}

type dbInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

type databaseStatsResponse struct {
	Databases   []dbInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// HandleDatabaseStats returns on-disk database sizes.
// GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	databases := []dbInfo{}
	totalSizeMB := 0.0

	for _, db := range []*database.DB{h.watchlistsDB, h.cacheDB} {
		if db == nil {
			continue
		}
		path := db.Path()
		if path == "" {
			path = filepath.Join(h.dataDir, db.Name()+".db")
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		sizeMB := float64(info.Size()) / 1024 / 1024
		totalSizeMB += sizeMB
		databases = append(databases, dbInfo{Name: db.Name(), Path: path, SizeMB: sizeMB})
	}

	writeJSON(w, databaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

type jobsResponse struct {
	TotalJobs int      `json:"total_jobs"`
	Jobs      []string `json:"jobs"`
}

// HandleJobs lists the registered cron jobs.
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []string{}
	if h.cron != nil {
		jobs = h.cron.JobNames()
	}
	writeJSON(w, jobsResponse{TotalJobs: len(jobs), Jobs: jobs})
}

// HandleRunJob triggers a registered job by name.
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if h.cron == nil {
		http.Error(w, "Scheduler not available", http.StatusServiceUnavailable)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")

	if err := h.cron.RunNow(name); err != nil {
		if _, ok := err.(scheduler.ErrUnknownJob); ok {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("job", name).Msg("Job failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"status": "success", "job": name})
}

// HandleBackups lists the stored backups, newest first.
// GET /api/system/backups
func (h *SystemHandlers) HandleBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups not configured", http.StatusServiceUnavailable)
		return
	}

	list, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"total": len(list), "backups": list})
}

// HandleRunBackup creates and uploads a backup immediately.
// POST /api/system/backups/run
func (h *SystemHandlers) HandleRunBackup(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		http.Error(w, "Backups not configured", http.StatusServiceUnavailable)
		return
	}

	h.log.Info().Msg("Manual backup triggered")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	name, size, err := h.backups.CreateAndUpload(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Backup failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":     "success",
		"filename":   name,
		"size_bytes": size,
	})
}

// systemStats returns average CPU and RAM usage percentages. The CPU sample
// uses a 100ms window to keep the endpoint responsive.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
