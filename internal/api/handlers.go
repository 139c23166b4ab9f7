// Package api provides the REST API handlers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/logware/soar/internal/metrics"
	"github.com/logware/soar/internal/models"
	"github.com/logware/soar/internal/notify"
	"github.com/logware/soar/internal/relay"
	"github.com/logware/soar/internal/storage"
	"github.com/logware/soar/internal/tracing"
	"github.com/logware/soar/internal/view"
	"github.com/logware/soar/pkg/clock"
)

// Handler handles API requests.
type Handler struct {
	store   storage.Store
	relay   *relay.Relay
	notices *notify.Center
	metrics *metrics.Metrics
	clock   clock.Clock
	logger  zerolog.Logger
	version string
}

// HandlerOptions configures optional handler collaborators.
type HandlerOptions struct {
	Relay   *relay.Relay
	Notices *notify.Center
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Version string
}

// NewHandler creates a new API handler.
func NewHandler(store storage.Store, logger zerolog.Logger, opts HandlerOptions) *Handler {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Handler{
		store:   store,
		relay:   opts.Relay,
		notices: opts.Notices,
		metrics: opts.Metrics,
		clock:   opts.Clock,
		logger:  logger.With().Str("component", "api").Logger(),
		version: opts.Version,
	}
}

// API Response types

// Response is a generic API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExecutionView is an execution record enriched with derived display state.
type ExecutionView struct {
	*models.ExecutionRecord
	Badge           view.Badge   `json:"badge"`
	ProgressPercent int          `json:"progress_percent"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty"`
	StepBadges      []view.Badge `json:"step_badges,omitempty"`
}

// ListExecutionsResponse is the response for listing executions.
type ListExecutionsResponse struct {
	Executions []*ExecutionView `json:"executions"`
	Total      int              `json:"total"`
}

// AbortResponse is the response for an accepted abort request.
type AbortResponse struct {
	Abort   models.AbortRequest `json:"abort"`
	Relayed bool                `json:"relayed"`
}

func executionView(rec *models.ExecutionRecord, withSteps bool) *ExecutionView {
	v := &ExecutionView{
		ExecutionRecord: rec,
		Badge:           view.ClassifyExecution(rec.Status),
		ProgressPercent: view.Progress(rec),
	}
	if d, ok := rec.Duration(); ok {
		secs := d.Seconds()
		v.DurationSeconds = &secs
	}
	if withSteps && len(rec.Steps) > 0 {
		v.StepBadges = make([]view.Badge, len(rec.Steps))
		for i := range rec.Steps {
			v.StepBadges[i] = view.ClassifyStep(rec.Steps[i].Status)
		}
	}
	return v
}

// Health check

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"version":   h.version,
			"timestamp": h.clock.Now().UTC(),
		},
	})
}

// Version handles GET /version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]string{"version": h.version},
	})
}

// Execution handlers

// IngestExecution handles POST /api/v1/executions: an engine pushing a
// new run record.
func (h *Handler) IngestExecution(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartAPISpan(r.Context(), "ingestExecution")
	defer span.End()

	var rec models.ExecutionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	if err := rec.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	rec.Normalize()

	_, ingestSpan := tracing.StartIngestSpan(ctx, rec.ID, string(rec.SourceType))
	err := h.store.CreateExecution(&rec)
	ingestSpan.End()
	if h.HandleStoreError(w, err, "create execution") {
		return
	}

	if h.metrics != nil {
		h.metrics.RecordIngest(string(rec.SourceType), string(rec.Status))
	}
	h.logger.Info().
		Str("execution_id", rec.ID).
		Str("source_type", string(rec.SourceType)).
		Str("status", string(rec.Status)).
		Msg("Execution ingested")

	h.writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data:    executionView(&rec, false),
	})
}

// UpdateExecution handles PUT /api/v1/executions/{id}: an engine pushing
// a fresh snapshot of an existing run.
func (h *Handler) UpdateExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var rec models.ExecutionRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.ID != id {
		h.WriteAPIError(w, NewValidationError("body id does not match URL"))
		return
	}
	if err := rec.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	rec.Normalize()

	// Abort annotations are console-owned; preserve them across engine
	// snapshots that do not carry them.
	if rec.AbortRequestedAt == nil {
		if prev, err := h.store.GetExecution(id); err == nil {
			rec.AbortRequestedAt = prev.AbortRequestedAt
			rec.AbortRequestedBy = prev.AbortRequestedBy
		}
	}

	if h.HandleStoreError(w, h.store.UpdateExecution(&rec), "update execution") {
		return
	}

	if h.metrics != nil {
		h.metrics.RecordIngest(string(rec.SourceType), string(rec.Status))
	}
	h.logger.Info().
		Str("execution_id", rec.ID).
		Str("status", string(rec.Status)).
		Msg("Execution updated")

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    executionView(&rec, false),
	})
}

// ListExecutions handles GET /api/v1/executions.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	q, apiErr := parseExecutionQuery(r)
	if apiErr != nil {
		h.WriteAPIError(w, apiErr)
		return
	}

	recs, err := h.store.ListExecutions()
	if h.HandleStoreError(w, err, "list executions") {
		return
	}

	flat := make([]models.ExecutionRecord, len(recs))
	for i, rec := range recs {
		flat[i] = *rec
	}
	filtered := view.Apply(flat, q, h.clock.Now())

	views := make([]*ExecutionView, len(filtered))
	for i := range filtered {
		views[i] = executionView(&filtered[i], false)
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: ListExecutionsResponse{
			Executions: views,
			Total:      len(views),
		},
	})
}

// GetExecution handles GET /api/v1/executions/{id}.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetExecution(id)
	if h.HandleStoreError(w, err, "get execution") {
		return
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    executionView(rec, true),
	})
}

// AbortExecution handles POST /api/v1/executions/{id}/abort. The abort
// is a request to the owning engine: the record is annotated and the
// request relayed, but the displayed status only changes when the engine
// pushes an update.
func (h *Handler) AbortExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		Reason      string       `json:"reason,omitempty"`
		RequestedBy models.Actor `json:"requested_by,omitempty"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.WriteAPIError(w, ErrInvalidJSON)
			return
		}
	}

	// Authenticated identity wins; unauthenticated callers may name
	// themselves in the body. Either way the annotation is explicit.
	actor := GetActorFromContext(r.Context())
	if actor.IsZero() {
		actor = body.RequestedBy
	}
	ctx, span := tracing.StartAbortSpan(r.Context(), id, actor.Display())
	defer span.End()

	rec, err := h.store.GetExecution(id)
	if h.HandleStoreError(w, err, "get execution") {
		return
	}
	if rec.Status != models.ExecutionRunning {
		h.WriteAPIError(w, ErrExecutionNotRunning)
		return
	}

	now := h.clock.Now().UTC()
	rec.AbortRequestedAt = &now
	rec.AbortRequestedBy = actor.Display()
	if h.HandleStoreError(w, h.store.UpdateExecution(rec), "update execution") {
		return
	}

	req := &models.AbortRequest{
		ExecutionID: id,
		RequestedBy: actor,
		RequestedAt: now,
		Reason:      body.Reason,
	}

	relayed := false
	if h.relay != nil {
		// Fire and forget; delivery outlives the request, so detach its
		// cancellation while keeping trace context.
		h.relay.Deliver(context.WithoutCancel(ctx), rec.CallbackURL, req)
		relayed = true
	}

	if h.metrics != nil {
		h.metrics.AbortRequestsTotal.Inc()
	}
	if h.notices != nil {
		h.notices.Infof("api", "abort requested",
			actor.Display()+" requested abort of execution "+id)
	}
	h.logger.Info().
		Str("execution_id", id).
		Str("actor", actor.Display()).
		Msg("Abort requested")

	h.writeJSON(w, http.StatusAccepted, Response{
		Success: true,
		Data:    AbortResponse{Abort: *req, Relayed: relayed},
	})
}

// Summary handler

// GetSummary handles GET /api/v1/summary. The summary reflects the same
// filters as the execution list, so the header always matches the rows
// below it.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	q, apiErr := parseExecutionQuery(r)
	if apiErr != nil {
		h.WriteAPIError(w, apiErr)
		return
	}

	recs, err := h.store.ListExecutions()
	if h.HandleStoreError(w, err, "list executions") {
		return
	}

	flat := make([]models.ExecutionRecord, len(recs))
	for i, rec := range recs {
		flat[i] = *rec
	}
	filtered := view.Apply(flat, q, h.clock.Now())

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    view.Summarize(filtered),
	})
}

// Playbook handlers

// CreatePlaybook handles POST /api/v1/playbooks.
func (h *Handler) CreatePlaybook(w http.ResponseWriter, r *http.Request) {
	var pb models.Playbook
	if err := json.NewDecoder(r.Body).Decode(&pb); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	if pb.ID == "" {
		pb.ID = uuid.New().String()
	}
	now := h.clock.Now().UTC()
	if pb.CreatedAt.IsZero() {
		pb.CreatedAt = now
	}
	pb.UpdatedAt = now

	if err := pb.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	if h.HandleStoreError(w, h.store.CreatePlaybook(&pb), "create playbook") {
		return
	}

	h.logger.Info().Str("playbook_id", pb.ID).Str("name", pb.Name).Msg("Playbook created")

	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: &pb})
}

// UpdatePlaybook handles PUT /api/v1/playbooks/{id}.
func (h *Handler) UpdatePlaybook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.GetPlaybook(id)
	if h.HandleStoreError(w, err, "get playbook") {
		return
	}

	var pb models.Playbook
	if err := json.NewDecoder(r.Body).Decode(&pb); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	pb.ID = id
	pb.CreatedAt = existing.CreatedAt
	pb.UpdatedAt = h.clock.Now().UTC()

	if err := pb.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	if h.HandleStoreError(w, h.store.UpdatePlaybook(&pb), "update playbook") {
		return
	}

	h.logger.Info().Str("playbook_id", id).Msg("Playbook updated")

	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: &pb})
}

// GetPlaybook handles GET /api/v1/playbooks/{id}.
func (h *Handler) GetPlaybook(w http.ResponseWriter, r *http.Request) {
	pb, err := h.store.GetPlaybook(chi.URLParam(r, "id"))
	if h.HandleStoreError(w, err, "get playbook") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: pb})
}

// ListPlaybooks handles GET /api/v1/playbooks.
func (h *Handler) ListPlaybooks(w http.ResponseWriter, r *http.Request) {
	pbs, err := h.store.ListPlaybooks()
	if h.HandleStoreError(w, err, "list playbooks") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: pbs})
}

// DeletePlaybook handles DELETE /api/v1/playbooks/{id}.
func (h *Handler) DeletePlaybook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.HandleStoreError(w, h.store.DeletePlaybook(id), "delete playbook") {
		return
	}

	h.logger.Info().Str("playbook_id", id).Msg("Playbook deleted")

	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"id": id}})
}

// Rule handlers

// CreateRule handles POST /api/v1/rules.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := h.clock.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := rule.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	if h.HandleStoreError(w, h.store.CreateRule(&rule), "create rule") {
		return
	}

	h.logger.Info().Str("rule_id", rule.ID).Str("name", rule.Name).Msg("Rule created")

	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: &rule})
}

// UpdateRule handles PUT /api/v1/rules/{id}.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := h.store.GetRule(id)
	if h.HandleStoreError(w, err, "get rule") {
		return
	}

	var rule models.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	rule.ID = id
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = h.clock.Now().UTC()

	if err := rule.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	if h.HandleStoreError(w, h.store.UpdateRule(&rule), "update rule") {
		return
	}

	h.logger.Info().Str("rule_id", id).Msg("Rule updated")

	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: &rule})
}

// GetRule handles GET /api/v1/rules/{id}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.store.GetRule(chi.URLParam(r, "id"))
	if h.HandleStoreError(w, err, "get rule") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: rule})
}

// ListRules handles GET /api/v1/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules()
	if h.HandleStoreError(w, err, "list rules") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: rules})
}

// DeleteRule handles DELETE /api/v1/rules/{id}.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.HandleStoreError(w, h.store.DeleteRule(id), "delete rule") {
		return
	}

	h.logger.Info().Str("rule_id", id).Msg("Rule deleted")

	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"id": id}})
}

// Anomaly handlers

// CreateAnomaly handles POST /api/v1/anomalies: the detection pipeline
// pushing a flagged deviation.
func (h *Handler) CreateAnomaly(w http.ResponseWriter, r *http.Request) {
	var a models.Anomaly
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		h.WriteAPIError(w, ErrInvalidJSON)
		return
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	if err := a.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}
	if h.HandleStoreError(w, h.store.CreateAnomaly(&a), "create anomaly") {
		return
	}

	if h.notices != nil && (a.Severity == models.SeverityHigh || a.Severity == models.SeverityCritical) {
		h.notices.Warnf("anomaly", a.Title, "new "+string(a.Severity)+" severity anomaly on "+a.Entity)
	}
	h.logger.Info().
		Str("anomaly_id", a.ID).
		Str("category", string(a.Category)).
		Str("severity", string(a.Severity)).
		Msg("Anomaly recorded")

	h.writeJSON(w, http.StatusCreated, Response{Success: true, Data: &a})
}

// GetAnomaly handles GET /api/v1/anomalies/{id}.
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAnomaly(chi.URLParam(r, "id"))
	if h.HandleStoreError(w, err, "get anomaly") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: a})
}

// ListAnomalies handles GET /api/v1/anomalies.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	as, err := h.store.ListAnomalies()
	if h.HandleStoreError(w, err, "list anomalies") {
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: as})
}

// Notice handlers

// ListNotices handles GET /api/v1/notices.
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var notices []notify.Notice
	if h.notices != nil {
		notices = h.notices.Recent(limit)
	}
	if notices == nil {
		notices = []notify.Notice{}
	}

	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: notices})
}

// Helper methods

// parseExecutionQuery builds an ExecutionQuery from URL query parameters.
func parseExecutionQuery(r *http.Request) (models.ExecutionQuery, *APIError) {
	vals := r.URL.Query()
	q := models.ExecutionQuery{
		Status: models.ExecutionStatus(vals.Get("status")),
		Source: models.SourceType(vals.Get("source")),
		Window: models.Window(vals.Get("window")),
		Search: vals.Get("search"),
	}
	if l := vals.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 0 {
			return q, NewValidationError("limit must be a non-negative integer")
		}
		q.Limit = parsed
	}
	if err := q.Validate(); err != nil {
		return q, NewValidationError(err.Error())
	}
	return q, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
