package httpapi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"callboard/internal/audit"
	"callboard/internal/calls"
	"callboard/internal/ingest"
	"callboard/internal/provider"
	"callboard/internal/reporting"
	"callboard/internal/teams"

	"github.com/gin-gonic/gin"
)

func init() { gin.SetMode(gin.TestMode) }

type fixture struct {
	calls   *calls.MemoryStore
	teams   *teams.MemoryStore
	audit   *audit.MemoryRepo
	handler Handlers
	router  *gin.Engine
}

// stubClient implements provider.Client for the connection test endpoint.
type stubClient struct{ testErr error }

func (s stubClient) ListServices(ctx context.Context) ([]string, error) { return nil, nil }
func (s stubClient) ListConsumptions(ctx context.Context, service string, from, to *time.Time) ([]string, error) {
	return nil, nil
}
func (s stubClient) GetDetail(ctx context.Context, service, id string) (json.RawMessage, error) {
	return nil, nil
}
func (s stubClient) Test(ctx context.Context) error { return s.testErr }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	callStore := calls.NewMemoryStore()
	teamStore := teams.NewMemoryStore()
	auditRepo := audit.NewMemoryRepo()

	factory := func(calls.ProviderSettings) provider.Client { return stubClient{} }
	worker := ingest.NewWorker(callStore, factory, nil, nil)

	h := Handlers{
		Store:     callStore,
		Teams:     teamStore,
		Matcher:   teams.NewMatcher(teamStore),
		Reporting: reporting.NewService(callStore),
		Worker:    worker,
		Audit:     audit.NewService(auditRepo, nil),
		Clients:   factory,
	}

	r := gin.New()
	r.GET("/calls", h.ListCalls)
	r.GET("/calls/export", h.ExportCalls)
	r.GET("/dashboard/summary", h.DashboardSummary)
	r.GET("/dashboard/timeseries", h.DashboardTimeseries)
	r.GET("/settings/provider", h.GetProviderSettings)
	r.PUT("/settings/provider", h.UpdateProviderSettings)
	r.POST("/settings/provider/test", h.TestProviderConnection)
	r.POST("/sync/trigger", h.TriggerSync)
	r.POST("/sync/debug", h.DebugSync)
	r.GET("/team-leads", h.ListTeamLeads)
	r.POST("/team-leads", h.CreateTeamLead)
	r.PUT("/team-leads/:id", h.UpdateTeamLead)
	r.DELETE("/team-leads/:id", h.DeleteTeamLead)
	r.GET("/team-lead-categories", h.ListCategories)
	r.GET("/audit", h.ListAuditEvents)
	r.GET("/healthz", h.Healthz)

	return &fixture{calls: callStore, teams: teamStore, audit: auditRepo, handler: h, router: r}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seedCall(t *testing.T, extID, calling string, started time.Time, missed bool) calls.CallRecord {
	t.Helper()
	rec := calls.CallRecord{
		ExternalID:    extID,
		StartedAt:     started,
		Direction:     calls.DirectionInbound,
		CallingNumber: calling,
		CalledNumber:  "0147000000",
		IsMissed:      missed,
	}
	if err := f.calls.Insert(context.Background(), &rec); err != nil {
		t.Fatalf("seed call: %v", err)
	}
	return rec
}

func TestListCalls_EnrichesWithTeamOverlay(t *testing.T) {
	f := newFixture(t)
	lead := teams.TeamLead{TeamName: "Equipe Nord", LeaderFirstName: "Ana", Phone: "0612345678"}
	if err := f.teams.CreateTeamLead(context.Background(), &lead); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	f.seedCall(t, "c1", "+33612345678", time.Now().UTC().Add(-time.Hour), false)
	f.seedCall(t, "c2", "+33700000000", time.Now().UTC().Add(-2*time.Hour), true)

	w := f.do(t, http.MethodGet, "/calls", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Items []struct {
			ExternalID string `json:"external_id"`
			Team       *struct {
				TeamName string `json:"team_name"`
			} `json:"team"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("expected 2 calls, got %+v", resp)
	}
	for _, item := range resp.Items {
		switch item.ExternalID {
		case "c1":
			if item.Team == nil || item.Team.TeamName != "Equipe Nord" {
				t.Fatalf("expected team overlay on c1, got %+v", item.Team)
			}
		case "c2":
			if item.Team != nil {
				t.Fatalf("unexpected overlay on c2: %+v", item.Team)
			}
		}
	}
}

func TestListCalls_RejectsBadFilter(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{
		"/calls?from=yesterday",
		"/calls?missed=maybe",
		"/calls?direction=SIDEWAYS",
		"/calls?page=0",
	} {
		if w := f.do(t, http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestExportCalls_CSVShape(t *testing.T) {
	f := newFixture(t)
	f.seedCall(t, "c1", "0611111111", time.Now().UTC().Add(-time.Hour), true)

	w := f.do(t, http.MethodGet, "/calls/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}

	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}
	want := []string{"started_at", "direction", "calling_number", "called_number", "duration_seconds", "status", "is_missed"}
	for i, col := range want {
		if rows[0][i] != col {
			t.Fatalf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][2] != "0611111111" || rows[1][6] != "true" {
		t.Fatalf("unexpected data row: %v", rows[1])
	}
}

func TestDashboardSummary_RangeValidation(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/dashboard/summary?range=90d", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad range, got %d", w.Code)
	}
	w := f.do(t, http.MethodGet, "/dashboard/summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got reporting.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Range != reporting.Range7Days {
		t.Fatalf("expected default 7d range, got %q", got.Range)
	}
}

func TestProviderSettings_RoundTripRedacts(t *testing.T) {
	f := newFixture(t)

	body := `{"billing_account":"ba-1","service_names":"line-1","app_key":"ak","app_secret":"very-secret","consumer_key":"ck"}`
	w := f.do(t, http.MethodPut, "/settings/provider", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "very-secret") {
		t.Fatalf("secret leaked in update response: %s", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/settings/provider", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got calls.ProviderSettings
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BillingAccount != "ba-1" {
		t.Fatalf("expected saved billing account, got %+v", got)
	}
	if got.AppSecret == "very-secret" || got.ConsumerKey == "ck" {
		t.Fatalf("expected redacted credentials, got %+v", got)
	}

	// Stored value keeps the real secret.
	stored, _ := f.calls.GetSettings(context.Background())
	if stored.AppSecret != "very-secret" {
		t.Fatalf("store must keep the real secret")
	}

	evs, _ := f.audit.List(context.Background(), 10)
	if len(evs) != 1 || evs[0].Type != audit.EventTypeSettingsUpdate {
		t.Fatalf("expected settings_update audit event, got %+v", evs)
	}
	if strings.Contains(evs[0].Metadata, "very-secret") {
		t.Fatalf("secret leaked into audit metadata")
	}
}

func TestSettingsUpdate_KeepsSyncCursor(t *testing.T) {
	f := newFixture(t)
	cursor := time.Now().UTC().Add(-time.Hour)
	if err := f.calls.SaveSettings(context.Background(), calls.ProviderSettings{BillingAccount: "ba"}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if err := f.calls.UpdateCursor(context.Background(), &cursor, nil); err != nil {
		t.Fatalf("seed cursor: %v", err)
	}

	w := f.do(t, http.MethodPut, "/settings/provider", `{"billing_account":"ba-2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	stored, _ := f.calls.GetSettings(context.Background())
	if stored.LastSyncAt == nil || !stored.LastSyncAt.Equal(cursor) {
		t.Fatalf("settings save must not clobber the sync cursor: %+v", stored.LastSyncAt)
	}
}

func TestTestProviderConnection_RequiresConfiguration(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodPost, "/settings/provider/test", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unconfigured account, got %d", w.Code)
	}

	if err := f.calls.SaveSettings(context.Background(), calls.ProviderSettings{BillingAccount: "ba"}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	if w := f.do(t, http.MethodPost, "/settings/provider/test", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTriggerSync_Returns202(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/sync/trigger", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("expected trigger accepted")
	}
}

func TestDebugSync_RejectsUnknownMode(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodPost, "/sync/debug", `{"mode":"replay"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w := f.do(t, http.MethodPost, "/sync/debug", `{"mode":"dry_run"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var report ingest.DebugReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.RunID == "" || report.Mode != ingest.DebugDryRun {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestTeamLeadCRUD(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/team-leads", `{"team_name":"Equipe Sud","leader_first_name":"Marc","phone":"0622222222","category_id":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created teams.TeamLead
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned id")
	}

	if w := f.do(t, http.MethodPost, "/team-leads", `{"leader_first_name":"NoTeam"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without team_name, got %d", w.Code)
	}

	w = f.do(t, http.MethodPut, "/team-leads/999", `{"team_name":"Ghost"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown lead, got %d", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/team-leads/"+strconv.FormatInt(created.ID, 10), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	evs, _ := f.audit.List(context.Background(), 10)
	if len(evs) != 2 {
		t.Fatalf("expected create and delete audit events, got %d", len(evs))
	}
}

func TestListCategories_Seeded(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/team-lead-categories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Items []teams.TeamLeadCategory `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 3 {
		t.Fatalf("expected 3 seeded categories, got %+v", resp.Items)
	}
}

func TestListAuditEvents(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/audit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Items []audit.Event `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected empty trail, got %+v", resp.Items)
	}

	if w := f.do(t, http.MethodPut, "/settings/provider", `{"billing_account":"ba"}`); w.Code != http.StatusOK {
		t.Fatalf("seed settings update: %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/sync/trigger", ""); w.Code != http.StatusAccepted {
		t.Fatalf("seed manual sync: %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/audit?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp.Items = nil
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Type != audit.EventTypeManualSync {
		t.Fatalf("expected the newest event only, got %+v", resp.Items)
	}

	if w := f.do(t, http.MethodGet, "/audit?limit=-3", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	if w := f.do(t, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
