package observability

import (
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"toeicbank/internal/app/logger"
	"toeicbank/internal/auth"
)

type key struct {
	Method string
	Path   string
	Status int
}

type stat struct {
	Count     int64
	LatencyMS float64
}

type importTotals struct {
	Batches   int64
	Questions int64
	Groups    int64
	Skipped   int64
}

type Collector struct {
	db  *sql.DB
	log *logger.Logger

	mu           sync.RWMutex
	requestStats map[key]stat
	imports      importTotals
	startedAt    time.Time
}

func NewCollector(db *sql.DB, log *logger.Logger) *Collector {
	return &Collector{
		db:           db,
		log:          log,
		requestStats: make(map[key]stat),
		startedAt:    time.Now(),
	}
}

// RecordImport accumulates the outcome of one committed import batch.
func (c *Collector) RecordImport(questions, groups, skipped int) {
	c.mu.Lock()
	c.imports.Batches++
	c.imports.Questions += int64(questions)
	c.imports.Groups += int64(groups)
	c.imports.Skipped += int64(skipped)
	c.mu.Unlock()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
		path := normalizedPath(r.URL.Path)

		c.mu.Lock()
		k := key{Method: r.Method, Path: path, Status: rec.status}
		s := c.requestStats[k]
		s.Count++
		s.LatencyMS += latencyMS
		c.requestStats[k] = s
		c.mu.Unlock()

		userID := int64(0)
		if u, ok := auth.CurrentUser(r.Context()); ok {
			userID = u.ID
		}

		c.log.Info("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"user_id", userID,
			"method", r.Method,
			"path", path,
			"status", rec.status,
			"latency_ms", latencyMS,
			"remote_ip", strings.TrimSpace(r.RemoteAddr),
		)
	})
}

func (c *Collector) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	statsCopy := make(map[key]stat, len(c.requestStats))
	for k, v := range c.requestStats {
		statsCopy[k] = v
	}
	imports := c.imports
	startedAt := c.startedAt
	c.mu.RUnlock()

	keys := make([]key, 0, len(statsCopy))
	for k := range statsCopy {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		if keys[i].Path != keys[j].Path {
			return keys[i].Path < keys[j].Path
		}
		return keys[i].Status < keys[j].Status
	})

	var sb strings.Builder
	sb.WriteString("# toeicbank observability metrics\n")
	sb.WriteString("# TYPE toeicbank_uptime_seconds gauge\n")
	sb.WriteString(fmt.Sprintf("toeicbank_uptime_seconds %.0f\n", time.Since(startedAt).Seconds()))

	sb.WriteString("# TYPE toeicbank_http_requests_total counter\n")
	sb.WriteString("# TYPE toeicbank_http_request_latency_ms_sum counter\n")
	sb.WriteString("# TYPE toeicbank_http_request_latency_ms_avg gauge\n")
	for _, k := range keys {
		s := statsCopy[k]
		labels := fmt.Sprintf("method=\"%s\",path=\"%s\",status=\"%d\"", k.Method, k.Path, k.Status)
		sb.WriteString(fmt.Sprintf("toeicbank_http_requests_total{%s} %d\n", labels, s.Count))
		sb.WriteString(fmt.Sprintf("toeicbank_http_request_latency_ms_sum{%s} %.3f\n", labels, s.LatencyMS))
		avg := 0.0
		if s.Count > 0 {
			avg = s.LatencyMS / float64(s.Count)
		}
		sb.WriteString(fmt.Sprintf("toeicbank_http_request_latency_ms_avg{%s} %.3f\n", labels, avg))
	}

	sb.WriteString("# TYPE toeicbank_import_batches_total counter\n")
	sb.WriteString(fmt.Sprintf("toeicbank_import_batches_total %d\n", imports.Batches))
	sb.WriteString("# TYPE toeicbank_import_questions_total counter\n")
	sb.WriteString(fmt.Sprintf("toeicbank_import_questions_total %d\n", imports.Questions))
	sb.WriteString("# TYPE toeicbank_import_groups_total counter\n")
	sb.WriteString(fmt.Sprintf("toeicbank_import_groups_total %d\n", imports.Groups))
	sb.WriteString("# TYPE toeicbank_import_skipped_total counter\n")
	sb.WriteString(fmt.Sprintf("toeicbank_import_skipped_total %d\n", imports.Skipped))

	if c.db != nil {
		dbs := c.db.Stats()
		sb.WriteString("# TYPE toeicbank_db_open_connections gauge\n")
		sb.WriteString(fmt.Sprintf("toeicbank_db_open_connections %d\n", dbs.OpenConnections))
		sb.WriteString("# TYPE toeicbank_db_in_use_connections gauge\n")
		sb.WriteString(fmt.Sprintf("toeicbank_db_in_use_connections %d\n", dbs.InUse))
		sb.WriteString("# TYPE toeicbank_db_idle_connections gauge\n")
		sb.WriteString(fmt.Sprintf("toeicbank_db_idle_connections %d\n", dbs.Idle))
		sb.WriteString("# TYPE toeicbank_db_wait_count counter\n")
		sb.WriteString(fmt.Sprintf("toeicbank_db_wait_count %d\n", dbs.WaitCount))
		sb.WriteString("# TYPE toeicbank_db_wait_duration_ms counter\n")
		sb.WriteString(fmt.Sprintf("toeicbank_db_wait_duration_ms %.3f\n", float64(dbs.WaitDuration.Microseconds())/1000.0))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(sb.String()))
}

func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
