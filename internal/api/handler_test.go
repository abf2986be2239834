package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vigil/sim-api/internal/api"
	"vigil/sim-api/internal/domain"
	"vigil/sim-api/internal/engine"
	"vigil/sim-api/internal/sample"
	"vigil/sim-api/internal/webhook"
)

// ─── Test fixtures ────────────────────────────────────────────────────────────

var testUsers = []domain.User{
	{ID: "U001", Name: "Sophia Mercer", Avatar: "SM", Device: "MacBook Pro", Location: "New York, US"},
	{ID: "U002", Name: "Rajan Patel", Avatar: "RP", Device: "iPhone 15", Location: "London, UK"},
}

// newTestServer builds a server around an engine that is seeded but never
// started, so the state only moves when a test asks it to.
func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(engine.Config{
		Users:      testUsers,
		Categories: []string{"Transfer", "Withdrawal", "Purchase"},
		Reasons:    []string{"Unusual transaction amount", "New device detected"},
		Tuning: engine.Tuning{
			TickMin:    time.Second,
			TickMax:    2 * time.Second,
			RiskChance: 0.35,
			SendDelay:  time.Millisecond,
			LoginDelay: time.Millisecond,
		},
		Sampler: sample.NewSeeded(99),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(eng.Stop)

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(eng, webhook.New())))
	t.Cleanup(srv.Close)
	return srv, eng
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
	}
	return resp, env
}

func unmarshal[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	return v
}

// ─── Health & snapshot ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	data := unmarshal[map[string]string](t, env.Data)
	if data["status"] != "ok" || data["service"] != "vigil-sim-api" {
		t.Errorf("health payload %v", data)
	}
}

func TestGetSnapshot(t *testing.T) {
	srv, eng := newTestServer(t)
	if _, err := eng.Generate("U001", true); err != nil {
		t.Fatal(err)
	}

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/snapshot", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	snap := unmarshal[domain.Snapshot](t, env.Data)

	if len(snap.Events) != 1 {
		t.Errorf("%d events in snapshot, want 1", len(snap.Events))
	}
	if len(snap.RiskWindow) != domain.WindowSize {
		t.Errorf("risk window %d, want %d", len(snap.RiskWindow), domain.WindowSize)
	}
	if len(snap.Hourly) != domain.HourlyBuckets {
		t.Errorf("hourly %d, want %d", len(snap.Hourly), domain.HourlyBuckets)
	}
	if snap.UnreadAlerts != 1 {
		t.Errorf("unread %d, want 1", snap.UnreadAlerts)
	}
}

// ─── Events ───────────────────────────────────────────────────────────────────

func TestGenerateEvent(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/generate",
		map[string]any{"user_id": "U001", "force_risky": true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}
	evt := unmarshal[domain.Event](t, env.Data)
	if evt.UserID != "U001" || !evt.IsRisky {
		t.Errorf("event %+v", evt)
	}
	if evt.RiskScore < 72 {
		t.Errorf("forced score %d, want >= 72", evt.RiskScore)
	}
}

func TestGenerateEvent_EmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/events/generate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("empty body rejected with %d, want 201", resp.StatusCode)
	}
}

func TestGenerateEvent_UnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events/generate",
		map[string]any{"user_id": "U999"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Errorf("error %+v", env.Error)
	}
}

func TestListEvents_Filters(t *testing.T) {
	srv, eng := newTestServer(t)
	_, _ = eng.Generate("U001", true)
	_, _ = eng.Generate("U002", true)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/events?filter=flagged", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var data struct {
		Filter string         `json:"filter"`
		Count  int            `json:"count"`
		Events []domain.Event `json:"events"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Filter != "flagged" || data.Count != 2 || len(data.Events) != 2 {
		t.Errorf("flagged listing %+v", data)
	}
	for _, e := range data.Events {
		if e.Status != domain.StatusFlagged {
			t.Errorf("clear event %s in flagged listing", e.ID)
		}
	}
}

func TestListEvents_InvalidFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/events?filter=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "INVALID_FILTER" {
		t.Errorf("error %+v", env.Error)
	}
}

// ─── Users & stats ────────────────────────────────────────────────────────────

func TestListUsers(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var users []struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
		Band  struct {
			Label string `json:"label"`
			Color string `json:"color"`
		} `json:"band"`
		Gauge struct {
			Track string `json:"track"`
			Color string `json:"color"`
		} `json:"gauge"`
	}
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != len(testUsers) {
		t.Fatalf("%d users, want %d", len(users), len(testUsers))
	}
	for _, u := range users {
		if u.Score < 20 || u.Score > 95 {
			t.Errorf("user %s score %d outside the seeded range", u.ID, u.Score)
		}
		if u.Band.Label == "" || u.Gauge.Track == "" {
			t.Errorf("user %s missing band/gauge: %+v", u.ID, u)
		}
	}
}

func TestGetStats(t *testing.T) {
	srv, eng := newTestServer(t)
	_, _ = eng.Generate("U001", true)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var data struct {
		Overview struct {
			AvgRisk       int    `json:"avg_risk"`
			AvgRiskBand   string `json:"avg_risk_band"`
			TotalEvents   int    `json:"total_events"`
			VolumeDisplay string `json:"volume_display"`
		} `json:"overview"`
		RiskSparkline struct {
			Line string `json:"line"`
		} `json:"risk_sparkline"`
		Donut struct {
			Arcs  []json.RawMessage `json:"arcs"`
			Label string            `json:"label"`
		} `json:"donut"`
		HourlyBars []struct {
			Label     string  `json:"label"`
			HeightPct float64 `json:"height_pct"`
		} `json:"hourly_bars"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Overview.TotalEvents != 1 {
		t.Errorf("total events %d, want 1", data.Overview.TotalEvents)
	}
	if data.Overview.VolumeDisplay == "" || data.RiskSparkline.Line == "" {
		t.Error("stats payload missing derived fields")
	}
	if len(data.Donut.Arcs) != 4 || data.Donut.Label != "25%" {
		t.Errorf("donut %+v", data.Donut)
	}
	if len(data.HourlyBars) != domain.HourlyBuckets {
		t.Errorf("%d hourly bars, want %d", len(data.HourlyBars), domain.HourlyBuckets)
	}
}

// ─── Alerts ───────────────────────────────────────────────────────────────────

func TestAlerts_ListAndMarkRead(t *testing.T) {
	srv, eng := newTestServer(t)
	_, _ = eng.Generate("U001", true)
	_, _ = eng.Generate("U002", true)

	_, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	var listing struct {
		Unread int            `json:"unread"`
		Count  int            `json:"count"`
		Alerts []domain.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatal(err)
	}
	if listing.Unread != 2 || listing.Count != 2 {
		t.Fatalf("listing %+v", listing)
	}

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/alerts/read", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark-read status %d", resp.StatusCode)
	}
	if got := unmarshal[map[string]int](t, env.Data); got["unread"] != 0 {
		t.Errorf("mark-read payload %v", got)
	}

	_, env = doJSON(t, http.MethodGet, srv.URL+"/api/v1/alerts/", nil)
	if err := json.Unmarshal(env.Data, &listing); err != nil {
		t.Fatal(err)
	}
	if listing.Unread != 0 {
		t.Errorf("unread %d after mark-read", listing.Unread)
	}
	for _, a := range listing.Alerts {
		if !a.Read {
			t.Errorf("alert %s still unread", a.AlertID)
		}
	}
}

// ─── Actions ──────────────────────────────────────────────────────────────────

func TestSendTransaction(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/actions/transaction",
		map[string]any{"user_id": "U001", "amount": "25,000"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}
	evt := unmarshal[domain.Event](t, env.Data)
	if evt.Amount != 25000 || !evt.IsRisky {
		t.Errorf("large transfer %+v", evt)
	}
}

func TestSendTransaction_MissingUser(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/actions/transaction",
		map[string]any{"amount": "100"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "MISSING_USER" {
		t.Errorf("error %+v", env.Error)
	}
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/actions/login",
		map[string]any{"user_id": "U002"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d, want 201", resp.StatusCode)
	}
	evt := unmarshal[domain.Event](t, env.Data)
	if evt.Category != domain.CategoryLogin || evt.Amount != 0 {
		t.Errorf("login event %+v", evt)
	}
}

func TestActions_ConflictWhileInFlight(t *testing.T) {
	srv, eng := newTestServer(t)
	if err := eng.Retune(engine.Tuning{
		TickMin:    time.Second,
		TickMax:    2 * time.Second,
		RiskChance: 0.35,
		SendDelay:  300 * time.Millisecond,
		LoginDelay: time.Millisecond,
	}); err != nil {
		t.Fatal(err)
	}

	first := make(chan int, 1)
	go func() {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/actions/transaction",
			map[string]any{"user_id": "U001", "amount": "100"})
		first <- resp.StatusCode
	}()
	time.Sleep(75 * time.Millisecond)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/actions/transaction",
		map[string]any{"user_id": "U001", "amount": "200"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second call status %d, want 409", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "CONFLICT" {
		t.Errorf("error %+v", env.Error)
	}

	if status := <-first; status != http.StatusCreated {
		t.Errorf("first call status %d, want 201", status)
	}
}

func TestActions_UnavailableAfterStop(t *testing.T) {
	srv, eng := newTestServer(t)
	eng.Stop()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/actions/login",
		map[string]any{"user_id": "U001"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != "ENGINE_STOPPED" {
		t.Errorf("error %+v", env.Error)
	}
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

func TestWebhooks_CRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/v1/webhooks"

	// Empty registry lists as [], not null.
	_, env := doJSON(t, http.MethodGet, base+"/", nil)
	if string(env.Data) == "null" {
		t.Error("empty webhook list serialized as null")
	}

	resp, env := doJSON(t, http.MethodPost, base+"/",
		map[string]any{"url": "http://example.com/hook", "threshold": 65})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	hook := unmarshal[webhook.Hook](t, env.Data)
	if hook.ID == "" || hook.Threshold != 65 || !hook.Active {
		t.Errorf("registered hook %+v", hook)
	}

	// Zero threshold defaults to the critical band.
	_, env = doJSON(t, http.MethodPost, base+"/", map[string]any{"url": "http://example.com/b"})
	if h := unmarshal[webhook.Hook](t, env.Data); h.Threshold != webhook.DefaultThreshold {
		t.Errorf("defaulted threshold %d, want %d", h.Threshold, webhook.DefaultThreshold)
	}

	resp, env = doJSON(t, http.MethodPost, base+"/", map[string]any{"url": "", "threshold": 10})
	if resp.StatusCode != http.StatusBadRequest || env.Error.Code != "MISSING_URL" {
		t.Errorf("missing url: %d %+v", resp.StatusCode, env.Error)
	}

	resp, env = doJSON(t, http.MethodPost, base+"/",
		map[string]any{"url": "http://example.com/c", "threshold": 150})
	if resp.StatusCode != http.StatusBadRequest || env.Error.Code != "INVALID_THRESHOLD" {
		t.Errorf("invalid threshold: %d %+v", resp.StatusCode, env.Error)
	}

	_, env = doJSON(t, http.MethodGet, base+"/", nil)
	if hooks := unmarshal[[]webhook.Hook](t, env.Data); len(hooks) != 2 {
		t.Errorf("listed %d hooks, want 2", len(hooks))
	}

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/%s", base, hook.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status %d, want 204", resp.StatusCode)
	}

	resp, env = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/%s", base, hook.ID), nil)
	if resp.StatusCode != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("double delete: %d %+v", resp.StatusCode, env.Error)
	}
}
