package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"callboard/internal/audit"
	"callboard/internal/calls"
	"callboard/internal/events"
	"callboard/internal/ingest"
	"callboard/internal/ratelimit"
	"callboard/internal/reporting"
	"callboard/internal/teams"
	"callboard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Store     calls.Store
	Teams     teams.Store
	Matcher   *teams.Matcher
	Reporting *reporting.Service
	Worker    *ingest.Worker
	Hub       *events.Hub
	Audit     *audit.Service

	// Clients builds a provider client for the connection test endpoint.
	Clients ingest.ClientFactory

	// DBPing is an optional liveness probe for /healthz.
	DBPing func(ctx context.Context) error
}

// --- Calls ---

// callResponse is one listed call with the read-time team overlay attached.
type callResponse struct {
	calls.CallRecord
	Team *teams.TeamIdentity `json:"team,omitempty"`
}

func (h Handlers) ListCalls(c *gin.Context) {
	log := logger.FromGin(c)

	f, err := parseListFilter(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, total, err := h.Store.List(c.Request.Context(), f)
	if err != nil {
		log.Error("call listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}

	// One roster snapshot per request; matching is a map lookup per row.
	var ix *teams.Index
	if h.Matcher != nil {
		ix, err = h.Matcher.Snapshot(c.Request.Context())
		if err != nil {
			log.Warn("roster snapshot failed, listing without team overlay", "err", err)
			ix = nil
		}
	}

	items := make([]callResponse, 0, len(records))
	for _, rec := range records {
		item := callResponse{CallRecord: rec}
		if ix != nil {
			if identity, ok := ix.Match(counterpartNumber(rec)); ok {
				item.Team = &identity
			}
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      f.Page,
		"page_size": f.PageSize,
	})
}

// counterpartNumber picks the roster-facing side of a call: who called in,
// or who we called out to.
func counterpartNumber(rec calls.CallRecord) string {
	if rec.Direction == calls.DirectionOutbound {
		return rec.CalledNumber
	}
	return rec.CallingNumber
}

func parseListFilter(c *gin.Context) (calls.ListFilter, error) {
	var f calls.ListFilter

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("from must be RFC3339")
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("to must be RFC3339")
		}
		f.To = &t
	}
	if v := c.Query("missed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("missed must be a boolean")
		}
		f.Missed = &b
	}
	switch v := c.Query("direction"); v {
	case "":
	case string(calls.DirectionInbound), string(calls.DirectionOutbound):
		f.Direction = calls.Direction(v)
	default:
		return f, errors.New("direction must be INBOUND or OUTBOUND")
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("page must be a positive integer")
		}
		f.Page = n
	}
	if v := c.Query("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("page_size must be a positive integer")
		}
		f.PageSize = n
	}
	return f, nil
}

var exportHeader = []string{
	"started_at", "direction", "calling_number", "called_number",
	"duration_seconds", "status", "is_missed",
}

// ExportCalls streams the filtered range as CSV. Without an explicit range
// it exports the trailing 30 days.
func (h Handlers) ExportCalls(c *gin.Context) {
	log := logger.FromGin(c)

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}

	records, err := h.Store.ListBetween(c.Request.Context(), from, to)
	if err != nil {
		log.Error("call export failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="calls.csv"`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, rec := range records {
		_ = w.Write([]string{
			rec.StartedAt.UTC().Format(time.RFC3339),
			string(rec.Direction),
			rec.CallingNumber,
			rec.CalledNumber,
			strconv.Itoa(rec.DurationSeconds),
			rec.Status,
			strconv.FormatBool(rec.IsMissed),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Warn("csv stream interrupted", "err", err)
	}
}

// --- Dashboard ---

func (h Handlers) DashboardSummary(c *gin.Context) {
	rng := reporting.Range(c.DefaultQuery("range", string(reporting.Range7Days)))
	out, err := h.Reporting.Summary(c.Request.Context(), rng)
	if errors.Is(err, reporting.ErrInvalidRange) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "range must be today, 7d or 30d"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DashboardTimeseries(c *gin.Context) {
	rng := reporting.Range(c.DefaultQuery("range", string(reporting.Range7Days)))
	out, err := h.Reporting.Timeseries(c.Request.Context(), rng)
	if errors.Is(err, reporting.ErrInvalidRange) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "range must be today, 7d or 30d"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("timeseries failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "timeseries failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Provider settings ---

type providerSettingsRequest struct {
	BillingAccount   string `json:"billing_account"`
	ServiceNames     string `json:"service_names"`
	AdminPhoneNumber string `json:"admin_phone_number"`
	AppKey           string `json:"app_key"`
	AppSecret        string `json:"app_secret"`
	ConsumerKey      string `json:"consumer_key"`
}

func (h Handlers) GetProviderSettings(c *gin.Context) {
	settings, err := h.Store.GetSettings(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("settings load failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "settings load failed"})
		return
	}
	c.JSON(http.StatusOK, settings.Redacted())
}

// UpdateProviderSettings replaces the editable settings fields. The sync
// cursor is owned by the worker and survives the save untouched.
func (h Handlers) UpdateProviderSettings(c *gin.Context) {
	var req providerSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	settings := calls.ProviderSettings{
		BillingAccount:   req.BillingAccount,
		ServiceNames:     req.ServiceNames,
		AdminPhoneNumber: req.AdminPhoneNumber,
		AppKey:           req.AppKey,
		AppSecret:        req.AppSecret,
		ConsumerKey:      req.ConsumerKey,
	}
	if err := h.Store.SaveSettings(c.Request.Context(), settings); err != nil {
		logger.FromGin(c).Error("settings save failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "settings save failed"})
		return
	}

	if h.Audit != nil {
		meta, _ := json.Marshal(settings.Redacted())
		h.Audit.LogSettingsUpdate(c.Request.Context(), actor(c), c.ClientIP(), string(meta))
	}
	c.JSON(http.StatusOK, settings.Redacted())
}

// TestProviderConnection checks the saved credentials against the provider.
func (h Handlers) TestProviderConnection(c *gin.Context) {
	settings, err := h.Store.GetSettings(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("settings load failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "settings load failed"})
		return
	}
	if !settings.Configured() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "provider account not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	testErr := h.Clients(settings).Test(ctx)

	if h.Audit != nil {
		h.Audit.LogConnectionTest(c.Request.Context(), actor(c), c.ClientIP(), testErr == nil)
	}
	if testErr != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": testErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// --- Sync ---

func (h Handlers) TriggerSync(c *gin.Context) {
	accepted := h.Worker.TriggerSync()
	if h.Audit != nil {
		h.Audit.LogManualSync(c.Request.Context(), actor(c), c.ClientIP(), accepted)
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted})
}

type debugSyncRequest struct {
	Days int    `json:"days"`
	Mode string `json:"mode"`
}

func (h Handlers) DebugSync(c *gin.Context) {
	var req debugSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(ingest.DebugDryRun)
	}

	report, err := h.Worker.Debug(c.Request.Context(), req.Days, ingest.DebugMode(req.Mode))
	if errors.Is(err, ingest.ErrUnknownDebugMode) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "mode must be dry_run or force_sync"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("debug sync failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Audit != nil {
		h.Audit.LogDebugSync(c.Request.Context(), actor(c), c.ClientIP(), req.Mode, report.RunID)
	}
	c.JSON(http.StatusOK, report)
}

// --- Roster ---

type teamLeadRequest struct {
	TeamName        string `json:"team_name"`
	LeaderFirstName string `json:"leader_first_name"`
	LeaderLastName  string `json:"leader_last_name"`
	Phone           string `json:"phone"`
	CategoryID      int64  `json:"category_id"`

	InterventionStartedAt *time.Time `json:"intervention_started_at"`
}

func (h Handlers) ListTeamLeads(c *gin.Context) {
	leads, err := h.Teams.ListTeamLeads(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("roster listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": leads})
}

func (h Handlers) CreateTeamLead(c *gin.Context) {
	var req teamLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.TeamName == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "team_name required"})
		return
	}

	lead := teams.TeamLead{
		TeamName:              req.TeamName,
		LeaderFirstName:       req.LeaderFirstName,
		LeaderLastName:        req.LeaderLastName,
		Phone:                 req.Phone,
		CategoryID:            req.CategoryID,
		InterventionStartedAt: req.InterventionStartedAt,
	}
	if err := h.Teams.CreateTeamLead(c.Request.Context(), &lead); err != nil {
		logger.FromGin(c).Error("team lead create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}

	h.rosterChanged(c, lead.ID, "team lead created")
	c.JSON(http.StatusCreated, lead)
}

func (h Handlers) UpdateTeamLead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req teamLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.TeamName == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "team_name required"})
		return
	}

	lead := teams.TeamLead{
		ID:                    id,
		TeamName:              req.TeamName,
		LeaderFirstName:       req.LeaderFirstName,
		LeaderLastName:        req.LeaderLastName,
		Phone:                 req.Phone,
		CategoryID:            req.CategoryID,
		InterventionStartedAt: req.InterventionStartedAt,
	}
	if err := h.Teams.UpdateTeamLead(c.Request.Context(), lead); err != nil {
		if errors.Is(err, teams.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "team lead not found"})
			return
		}
		logger.FromGin(c).Error("team lead update failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	h.rosterChanged(c, id, "team lead updated")
	c.JSON(http.StatusOK, lead)
}

func (h Handlers) DeleteTeamLead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.Teams.DeleteTeamLead(c.Request.Context(), id); err != nil {
		if errors.Is(err, teams.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "team lead not found"})
			return
		}
		logger.FromGin(c).Error("team lead delete failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}

	h.rosterChanged(c, id, "team lead deleted")
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListCategories(c *gin.Context) {
	cats, err := h.Teams.ListCategories(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("category listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cats})
}

func (h Handlers) rosterChanged(c *gin.Context, leadID int64, message string) {
	if h.Audit != nil {
		h.Audit.LogRosterChange(c.Request.Context(), actor(c), c.ClientIP(), leadID, message)
	}
	if h.Hub != nil {
		h.Hub.Publish(c.Request.Context(), events.SummaryChanged())
	}
}

// --- Audit ---

// ListAuditEvents returns the newest operational audit entries.
func (h Handlers) ListAuditEvents(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	evs, err := h.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("audit listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	if evs == nil {
		evs = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"items": evs})
}

// --- Misc ---

func (h Handlers) Healthz(c *gin.Context) {
	if h.DBPing != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DBPing(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actor identifies the operator behind a request. There is no auth layer;
// the dashboard trusts an optional header set by the reverse proxy.
func actor(c *gin.Context) string {
	return c.GetHeader("X-Operator")
}

// RateLimit guards an endpoint group with a fixed-window limiter.
func RateLimit(l *ratelimit.Limiter, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l != nil && !l.Allow(c.Request.Context(), key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
