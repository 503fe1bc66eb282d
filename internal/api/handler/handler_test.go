package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TechEqualizer/Sportlink-sub001/internal/alerts"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api/handler"
	"github.com/TechEqualizer/Sportlink-sub001/internal/api/respond"
	"github.com/TechEqualizer/Sportlink-sub001/internal/cache"
	"github.com/TechEqualizer/Sportlink-sub001/internal/config"
	"github.com/TechEqualizer/Sportlink-sub001/internal/messaging"
	"github.com/TechEqualizer/Sportlink-sub001/internal/roster"
)

type fakeRoster struct {
	players []roster.Player
}

func (f *fakeRoster) Resolve(ctx context.Context, segment string, specific []string) ([]roster.Player, error) {
	switch segment {
	case "all":
		return f.players, nil
	case "starters":
		var out []roster.Player
		for _, p := range f.players {
			if p.Starter {
				out = append(out, p)
			}
		}
		return out, nil
	case "bench":
		var out []roster.Player
		for _, p := range f.players {
			if !p.Starter {
				out = append(out, p)
			}
		}
		return out, nil
	case "specific":
		var out []roster.Player
		for _, p := range f.players {
			for _, id := range specific {
				if p.ID == id {
					out = append(out, p)
				}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown roster segment %q", segment)
}

type fakeStats struct {
	values map[string]float64 // playerID -> value, any metric
}

func (f *fakeStats) MetricOver(ctx context.Context, playerID, metric string, windowDays int, now time.Time) (float64, bool, error) {
	v, ok := f.values[playerID]
	return v, ok, nil
}

type testEnv struct {
	router   http.Handler
	messages *messaging.MemStore
	alerts   *alerts.MemStore
	stats    *fakeStats
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	msgStore := messaging.NewMemStore()
	alertStore := alerts.NewMemStore()
	stats := &fakeStats{values: map[string]float64{}}
	players := &fakeRoster{players: []roster.Player{
		{ID: "p1", Name: "Jordan Ellis", Position: "PG", Starter: true, Active: true},
		{ID: "p2", Name: "Sam Reyes", Position: "C", Starter: false, Active: true},
	}}

	svc := messaging.NewService(msgStore, logger)
	engine := alerts.NewEngine(alertStore, players, stats, logger)

	cfg := &config.Config{
		CORSAllowOrigins: []string{"http://localhost:3000"},
		RateLimitEnabled: false,
		CacheEnabled:     true,
	}
	h := handler.New(nil, cache.New(true), cfg, svc, alertStore, engine, players)
	return &testEnv{
		router:   api.NewRouter(h, cfg),
		messages: msgStore,
		alerts:   alertStore,
		stats:    stats,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/health = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/health/db", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/health/db = %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["database"] != "in-memory" {
		t.Errorf("database = %v, want in-memory", body["database"])
	}

	rr = env.do(t, http.MethodGet, "/health/cache", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/health/cache = %d", rr.Code)
	}
}

func TestCreateAndListMessages(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/messages", messaging.SendInput{
		SenderID:    "coach1",
		Type:        messaging.TypeDirect,
		RecipientID: ptr("p1"),
		Content:     "practice moved to 6pm",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[messaging.Message](t, rr)
	if created.ID == 0 || created.Status != messaging.StatusSent || created.Priority != messaging.PriorityNormal {
		t.Errorf("created = %+v", created)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/messages?user=p1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list = %d", rr.Code)
	}
	msgs := decode[[]messaging.Message](t, rr)
	if len(msgs) != 1 || msgs[0].ID != created.ID {
		t.Fatalf("list = %+v", msgs)
	}

	// Not addressed to p2.
	rr = env.do(t, http.MethodGet, "/api/v1/messages?user=p2", nil)
	if msgs := decode[[]messaging.Message](t, rr); len(msgs) != 0 {
		t.Fatalf("p2 list = %+v, want empty", msgs)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/messages", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing user = %d, want 400", rr.Code)
	}
}

func TestCreateMessageValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/messages", messaging.SendInput{
		SenderID:    "coach1",
		Type:        messaging.TypeBroadcast,
		RecipientID: ptr("p1"),
		Content:     "hello",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("broadcast with recipient = %d, want 400", rr.Code)
	}
	resp := decode[respond.ErrorResponse](t, rr)
	if resp.Error.Code != "VALIDATION_ERROR" || resp.Error.Field != "recipient_id" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/messages", messaging.SendInput{
		SenderID: "coach1",
		Type:     messaging.TypeBroadcast,
		Content:  "team meeting friday",
	})
	created := decode[messaging.Message](t, rr)

	rr = env.do(t, http.MethodGet, "/api/v1/messages/unread/count?user=p1", nil)
	body := decode[map[string]any](t, rr)
	if body["unread"].(float64) != 1 {
		t.Fatalf("unread = %v, want 1", body["unread"])
	}

	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/messages/%d/read", created.ID),
		map[string]any{"user_id": "p1", "device_info": map[string]string{"platform": "ios"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("mark read = %d: %s", rr.Code, rr.Body.String())
	}
	receipt := decode[messaging.MessageRead](t, rr)
	if receipt.MessageID != created.ID || receipt.UserID != "p1" || receipt.DeviceInfo["platform"] != "ios" {
		t.Errorf("receipt = %+v", receipt)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/messages/unread/count?user=p1", nil)
	body = decode[map[string]any](t, rr)
	if body["unread"].(float64) != 0 {
		t.Fatalf("unread after read = %v, want 0", body["unread"])
	}

	// Unknown message id.
	rr = env.do(t, http.MethodPost, "/api/v1/messages/999/read", map[string]any{"user_id": "p1"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("mark read missing = %d, want 404", rr.Code)
	}
}

func TestUnreadByPlayer(t *testing.T) {
	env := newTestEnv(t)

	for _, recipient := range []string{"p1", "p1", "p2"} {
		rr := env.do(t, http.MethodPost, "/api/v1/messages", messaging.SendInput{
			SenderID:    "coach1",
			Type:        messaging.TypeDirect,
			RecipientID: ptr(recipient),
			Content:     "check in",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("create = %d", rr.Code)
		}
	}

	rr := env.do(t, http.MethodGet, "/api/v1/messages/unread/by-player?coach=coach1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("by-player = %d", rr.Code)
	}
	body := decode[struct {
		CoachID string         `json:"coach_id"`
		Counts  map[string]int `json:"counts"`
	}](t, rr)
	if body.Counts["p1"] != 2 || body.Counts["p2"] != 1 {
		t.Fatalf("counts = %v", body.Counts)
	}
}

func TestRuleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/v1/alert-rules", map[string]any{
		"name":            "low scoring",
		"metric_name":     "ppg",
		"comparison":      "below",
		"threshold_value": 10,
		"alert_type":      "benchmark_low",
		"check_frequency": "daily",
		"applies_to":      "all",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create rule = %d: %s", rr.Code, rr.Body.String())
	}
	rule := decode[alerts.Rule](t, rr)
	if !rule.IsActive || rule.TimeWindowDays != 7 || rule.Severity != alerts.SeverityWarning {
		t.Errorf("defaults not applied: %+v", rule)
	}

	// between without secondary is rejected up front.
	rr = env.do(t, http.MethodPost, "/api/v1/alert-rules", map[string]any{
		"name":            "mid range",
		"metric_name":     "ppg",
		"comparison":      "between",
		"threshold_value": 10,
		"alert_type":      "benchmark_low",
		"check_frequency": "daily",
		"applies_to":      "all",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid rule = %d, want 400", rr.Code)
	}
	resp := decode[respond.ErrorResponse](t, rr)
	if resp.Error.Field != "secondary_threshold" {
		t.Errorf("error = %+v", resp.Error)
	}

	// Partial update: omitted fields keep their values.
	rr = env.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/alert-rules/%d", rule.ID),
		map[string]any{"threshold_value": 12})
	if rr.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rr.Code, rr.Body.String())
	}
	updated := decode[alerts.Rule](t, rr)
	if updated.ThresholdValue != 12 || updated.Name != "low scoring" || updated.MetricName != "ppg" {
		t.Errorf("updated = %+v", updated)
	}

	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/alert-rules/%d/deactivate", rule.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("deactivate = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/alert-rules?active=true", nil)
	if active := decode[[]alerts.Rule](t, rr); len(active) != 0 {
		t.Fatalf("active rules = %+v, want none", active)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/alert-rules", nil)
	if all := decode[[]alerts.Rule](t, rr); len(all) != 1 {
		t.Fatalf("all rules = %+v, want 1", all)
	}

	// Second listing revalidates against the cached ETag.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/alert-rules", nil)
	req.Header.Set("If-None-Match", rr.Header().Get("ETag"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("cached listing = %d, want 304", rec.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.stats.values["p1"] = 8

	rr := env.do(t, http.MethodPost, "/api/v1/alert-rules", map[string]any{
		"name":            "low scoring",
		"metric_name":     "ppg",
		"comparison":      "below",
		"threshold_value": 10,
		"alert_type":      "benchmark_low",
		"severity":        "alert",
		"check_frequency": "daily",
		"applies_to":      "specific",
		"specific_players": []string{
			"p1",
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create rule = %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/v1/alerts/evaluate", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("evaluate = %d", rr.Code)
	}
	result := decode[alerts.PassResult](t, rr)
	if result.AlertsCreated != 1 {
		t.Fatalf("result = %+v, want 1 alert created", result)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/alerts?unresolved=true", nil)
	open := decode[[]alerts.Alert](t, rr)
	if len(open) != 1 || open[0].PlayerID != "p1" || !open[0].ActionRequired {
		t.Fatalf("open alerts = %+v", open)
	}

	// Wrong frequency bucket runs nothing.
	rr = env.do(t, http.MethodPost, "/api/v1/alerts/evaluate?frequency=hourly", nil)
	result = decode[alerts.PassResult](t, rr)
	if result.RulesConsidered != 0 {
		t.Fatalf("hourly pass considered %d rules, want 0", result.RulesConsidered)
	}

	alertID := open[0].ID
	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/alerts/%d/acknowledge", alertID),
		map[string]any{"user_id": "coach1"})
	if rr.Code != http.StatusOK {
		t.Fatalf("acknowledge = %d", rr.Code)
	}
	acked := decode[alerts.Alert](t, rr)
	if !acked.Acknowledged || acked.AcknowledgedBy != "coach1" {
		t.Errorf("acknowledged = %+v", acked)
	}

	rr = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/alerts/%d/resolve", alertID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("resolve = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/v1/alerts?unresolved=true", nil)
	if open := decode[[]alerts.Alert](t, rr); len(open) != 0 {
		t.Fatalf("open after resolve = %+v", open)
	}
}

func TestRosterCaching(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/v1/roster?segment=starters", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("roster = %d", rr.Code)
	}
	if got := rr.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	players := decode[[]roster.Player](t, rr)
	if len(players) != 1 || players[0].ID != "p1" {
		t.Fatalf("starters = %+v", players)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roster?segment=starters", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("revalidation = %d, want 304", rec.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/roster?segment=specific", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("segment=specific = %d, want 400", rr.Code)
	}
}

func ptr(s string) *string { return &s }
