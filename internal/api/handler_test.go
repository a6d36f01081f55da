package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tommykeeley-amp/pm-os-sub002/internal/digest"
	"github.com/tommykeeley-amp/pm-os-sub002/internal/events"
	"github.com/tommykeeley-amp/pm-os-sub002/pkg/logging"
)

var handlerNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type stubSuggester struct {
	suggestions []events.Suggestion
}

func (s stubSuggester) SmartSuggestions(context.Context) []events.Suggestion {
	return s.suggestions
}

type stubRunner struct {
	slots []string
	err   error
}

func (r *stubRunner) RunCycle(_ context.Context, slot string) error {
	r.slots = append(r.slots, slot)
	return r.err
}

type stubScheduler struct {
	fires map[string]time.Time
}

func (s stubScheduler) NextFires() map[string]time.Time { return s.fires }

type stubState struct {
	digest.StateStore
	tasks map[string]string
	err   error
}

func (s *stubState) RecordTaskCreated(_ context.Context, sourceID, taskID string, _ time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.tasks[sourceID] = taskID
	return nil
}

type stubEvents struct {
	published [][2]string
}

func (s *stubEvents) PublishTaskCreated(sourceID, taskID string) error {
	s.published = append(s.published, [2]string{sourceID, taskID})
	return nil
}

func newTestRouter(cfg HandlerConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return handlerNow }
	}
	router := gin.New()
	NewHandler(cfg).RegisterRoutes(router)
	return router
}

func TestGetSuggestions(t *testing.T) {
	router := newTestRouter(HandlerConfig{
		Suggester: stubSuggester{suggestions: []events.Suggestion{
			{ID: "a", Title: "Prepare for: Standup", Score: 100, Priority: events.PriorityHigh},
		}},
		State: &stubState{tasks: map[string]string{}},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pulse/suggestions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Suggestions []events.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Suggestions) != 1 || body.Suggestions[0].Score != 100 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetSuggestionsUnconfigured(t *testing.T) {
	router := newTestRouter(HandlerConfig{State: &stubState{tasks: map[string]string{}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pulse/suggestions", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestCreateTaskRecordsAndPublishes(t *testing.T) {
	state := &stubState{tasks: map[string]string{}}
	published := &stubEvents{}
	router := newTestRouter(HandlerConfig{State: state, Events: published})

	body := strings.NewReader(`{"sourceId": "C1:1.000", "taskId": "JIRA-42"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pulse/tasks", body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if state.tasks["C1:1.000"] != "JIRA-42" {
		t.Fatalf("task not recorded: %v", state.tasks)
	}
	if len(published.published) != 1 || published.published[0] != [2]string{"C1:1.000", "JIRA-42"} {
		t.Fatalf("unexpected publishes: %v", published.published)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	router := newTestRouter(HandlerConfig{State: &stubState{tasks: map[string]string{}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pulse/tasks", strings.NewReader(`{"sourceId": ""}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCreateTaskStoreFailure(t *testing.T) {
	router := newTestRouter(HandlerConfig{State: &stubState{tasks: map[string]string{}, err: errors.New("db down")}})

	body := strings.NewReader(`{"sourceId": "C1:1.000", "taskId": "JIRA-42"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pulse/tasks", body))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestRunDigestDefaultsToManualSlot(t *testing.T) {
	runner := &stubRunner{}
	router := newTestRouter(HandlerConfig{Runner: runner, State: &stubState{tasks: map[string]string{}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pulse/digest/run", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(runner.slots) != 1 || runner.slots[0] != "manual" {
		t.Fatalf("unexpected slots: %v", runner.slots)
	}
}

func TestRunDigestPassesSlot(t *testing.T) {
	runner := &stubRunner{}
	router := newTestRouter(HandlerConfig{Runner: runner, State: &stubState{tasks: map[string]string{}}})

	body := strings.NewReader(`{"slot": "09:00"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pulse/digest/run", body))

	if len(runner.slots) != 1 || runner.slots[0] != "09:00" {
		t.Fatalf("unexpected slots: %v", runner.slots)
	}
}

func TestRunDigestUnconfigured(t *testing.T) {
	router := newTestRouter(HandlerConfig{State: &stubState{tasks: map[string]string{}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pulse/digest/run", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestDigestState(t *testing.T) {
	router := newTestRouter(HandlerConfig{
		Runner: &stubRunner{},
		Scheduler: stubScheduler{fires: map[string]time.Time{
			"09:00": handlerNow.Add(time.Hour),
		}},
		State: &stubState{tasks: map[string]string{}},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pulse/digest/state", nil))

	var body struct {
		Enabled   bool              `json:"enabled"`
		NextFires map[string]string `json:"nextFires"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Enabled {
		t.Fatal("expected digest enabled")
	}
	if body.NextFires["09:00"] != handlerNow.Add(time.Hour).Format(time.RFC3339) {
		t.Fatalf("unexpected next fires: %v", body.NextFires)
	}
}

func TestDigestStateDisabled(t *testing.T) {
	router := newTestRouter(HandlerConfig{State: &stubState{tasks: map[string]string{}}})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pulse/digest/state", nil))

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Enabled {
		t.Fatal("expected digest disabled without a scheduler")
	}
}
