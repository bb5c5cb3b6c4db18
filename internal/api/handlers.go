package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mariasu11/grepstream/internal/config"
	"github.com/mariasu11/grepstream/internal/filter"
	"github.com/mariasu11/grepstream/internal/metrics"
	"github.com/mariasu11/grepstream/internal/pipeline"
	"github.com/mariasu11/grepstream/pkg/dateformat"
	"github.com/mariasu11/grepstream/pkg/timebound"
)

// Version is reported by the health check
var Version = "dev"

// FilterResponse is the body returned by the filter endpoint
type FilterResponse struct {
	Entries    []string `json:"entries"`
	Count      int      `json:"count"`
	Lines      int      `json:"lines"`
	Terminated bool     `json:"terminated"`
	Overdue    string   `json:"overdue,omitempty"`
	Truncated  bool     `json:"truncated,omitempty"`
}

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	store       *config.Store
	logger      hclog.Logger
	metrics     *metrics.Metrics
	clock       clock.Clock
	location    *time.Location
	maxBodySize int64
}

// HandlerOption configures Handlers
type HandlerOption func(*Handlers)

// WithClock sets the clock relative bounds are resolved against
func WithClock(c clock.Clock) HandlerOption {
	return func(h *Handlers) {
		h.clock = c
	}
}

// WithLocation sets the default time zone of bounds and timestamps
func WithLocation(loc *time.Location) HandlerOption {
	return func(h *Handlers) {
		if loc != nil {
			h.location = loc
		}
	}
}

// NewHandlers creates a new set of API handlers
func NewHandlers(store *config.Store, maxBodySize int64, logger hclog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if store == nil {
		store = config.NewStaticStore(nil)
	}
	h := &Handlers{
		store:       store,
		logger:      logger.Named("handlers"),
		metrics:     metrics.GetMetrics(),
		clock:       clock.New(),
		location:    time.Local,
		maxBodySize: maxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Filter runs the request body through a pipeline and returns the entries
// that pass. Query parameters:
//
//	config       config id of the filter set
//	pattern      compound pattern, overrides the config's alias
//	entry        entry start pattern, overrides the config's saved config
//	date_regex   regex capturing the timestamp of an entry
//	date_format  date format of the captured timestamp
//	from, to     window bounds: "now", durations or absolute times
//	stateless    "true" re-checks the lower bound on every entry
//	tz           time zone of timestamps without zone
//	limit        maximum number of entries returned
func (h *Handlers) Filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	loc := h.location
	if tz := q.Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			h.respondWithError(w, r, http.StatusBadRequest, "invalid_parameter", "Invalid tz: "+err.Error())
			return
		}
		loc = l
	}

	stateless := false
	if s := q.Get("stateless"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			h.respondWithError(w, r, http.StatusBadRequest, "invalid_parameter", "Invalid stateless: "+err.Error())
			return
		}
		stateless = v
	}

	limit := 0
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			h.respondWithError(w, r, http.StatusBadRequest, "invalid_parameter", "Invalid limit: "+l)
			return
		}
		limit = v
	}

	popts := []timebound.Option{timebound.WithClock(h.clock), timebound.WithLocation(loc)}
	if df := q.Get("date_format"); df != "" {
		if f, err := dateformat.Compile(df, loc); err == nil {
			popts = append(popts, timebound.WithFormat(f))
		}
	}
	from, to, err := timebound.NewParser(popts...).Window(q.Get("from"), q.Get("to"))
	if err != nil {
		h.respondWithError(w, r, http.StatusBadRequest, "invalid_parameter", "Invalid time window: "+err.Error())
		return
	}

	builder := pipeline.NewBuilder(h.store.Get(), h.logger, h.metrics)
	p, err := builder.Build(pipeline.Options{
		ConfigID:     q.Get("config"),
		EntryPattern: q.Get("entry"),
		Pattern:      q.Get("pattern"),
		DateRegex:    q.Get("date_regex"),
		DateFormat:   q.Get("date_format"),
		From:         from,
		To:           to,
		Stateless:    stateless,
		Location:     loc,
	})
	if err != nil {
		h.respondWithFilterError(w, r, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBodySize)
	defer body.Close()

	sink := pipeline.NewSliceSink(limit)
	summary, err := p.Run(r.Context(), body, sink)
	truncated := false
	if errors.Is(err, pipeline.ErrSinkFull) {
		truncated, err = true, nil
	}
	if err != nil {
		h.respondWithFilterError(w, r, err)
		return
	}

	entries := sink.Entries
	if entries == nil {
		entries = []string{}
	}
	h.respondWithJSON(w, http.StatusOK, FilterResponse{
		Entries:    entries,
		Count:      len(entries),
		Lines:      summary.Lines,
		Terminated: summary.Terminated,
		Overdue:    summary.Overdue,
		Truncated:  truncated,
	})
}

// ListConfigs returns the config ids of the loaded filter set
func (h *Handlers) ListConfigs(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"configs": h.store.Get().IDs(),
		"path":    h.store.Path(),
	})
}

// ExportConfig returns the filter set fragment of one config id as YAML,
// exported from freshly bound filters
func (h *Handlers) ExportConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	fs, err := pipeline.NewBuilder(h.store.Get(), h.logger, h.metrics).Export(id)
	if err != nil {
		h.respondWithFilterError(w, r, err)
		return
	}

	data, err := fs.Marshal()
	if err != nil {
		h.respondWithError(w, r, http.StatusInternalServerError, "encode", "Failed to encode config: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// HealthCheck checks the health of the API
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": Version,
		"configs": len(h.store.Get().IDs()),
	})
}

// GetDocs returns API documentation
func (h *Handlers) GetDocs(w http.ResponseWriter, r *http.Request) {
	docs := map[string]interface{}{
		"name":        "grepstream API",
		"version":     Version,
		"description": "Streaming log filter: entry reassembly, compound patterns and date windows",
		"endpoints": []map[string]string{
			{"path": "/api/v1/filter", "method": "POST", "description": "Filter the log lines in the request body"},
			{"path": "/api/v1/configs", "method": "GET", "description": "List config ids"},
			{"path": "/api/v1/configs/{id}", "method": "GET", "description": "Export one config as YAML"},
			{"path": "/api/v1/health", "method": "GET", "description": "Check API health"},
			{"path": "/metrics", "method": "GET", "description": "Prometheus metrics"},
		},
	}

	h.respondWithJSON(w, http.StatusOK, docs)
}

// respondWithFilterError maps pipeline and filter errors to status codes
func (h *Handlers) respondWithFilterError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, filter.ErrConfigNotFound):
		h.respondWithError(w, r, http.StatusNotFound, "config_not_found", err.Error())
	case errors.Is(err, filter.ErrPropertyMissing):
		h.respondWithError(w, r, http.StatusUnprocessableEntity, "property_missing", err.Error())
	case errors.Is(err, filter.ErrInvalidArgument), errors.Is(err, filter.ErrIllegalState):
		h.respondWithError(w, r, http.StatusBadRequest, "invalid_filter", err.Error())
	case errors.Is(err, filter.ErrDateParse):
		h.respondWithError(w, r, http.StatusUnprocessableEntity, "date_parse", err.Error())
	case errors.As(err, &maxBytes):
		h.respondWithError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
	default:
		h.logger.Error("Filter failed", "error", err)
		h.respondWithError(w, r, http.StatusInternalServerError, "internal", err.Error())
	}
}

// respondWithError sends an error response
func (h *Handlers) respondWithError(w http.ResponseWriter, r *http.Request, code int, errorType, message string) {
	h.metrics.APIErrors.With(prometheus.Labels{
		"method":     r.Method,
		"path":       r.URL.Path,
		"error_type": errorType,
	}).Inc()
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON sends a JSON response
func (h *Handlers) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	// Set headers
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	// Encode and send response
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
