package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"laundry_notifier/internal/logger"
	"laundry_notifier/internal/models"
	"laundry_notifier/internal/service"
)

// monitorStub satisfies service.Monitor for handler tests.
type monitorStub struct {
	statuses []models.ApplianceStatus
}

func (m *monitorStub) Run(ctx context.Context) error    { return nil }
func (m *monitorStub) Status() []models.ApplianceStatus { return m.statuses }

// eventLogStub satisfies service.EventLog.
type eventLogStub struct {
	events  []models.CycleEvent
	err     error
	gotType string
}

func (e *eventLogStub) List(ctx context.Context, f service.LogFilter) ([]models.CycleEvent, error) {
	e.gotType = f.Type
	return e.events, e.err
}

func newTestHandler(mon *monitorStub, log *eventLogStub) *Handler {
	gin.SetMode(gin.TestMode)
	return NewHandler(&service.Service{Monitor: mon, EventLog: log}, logger.Get(logger.ErrorLevel, ""))
}

func TestGetAppliances_ReturnsSnapshot(t *testing.T) {
	mon := &monitorStub{statuses: []models.ApplianceStatus{
		{Name: "washer", Type: models.Washer, State: models.StateRunning, LastPower: 310.5},
	}}
	h := newTestHandler(mon, &eventLogStub{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appliances", nil)
	h.InitRoutes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Count      int                      `json:"count"`
		Appliances []models.ApplianceStatus `json:"appliances"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || len(body.Appliances) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Appliances[0].Name != "washer" || body.Appliances[0].State != models.StateRunning {
		t.Errorf("unexpected appliance: %+v", body.Appliances[0])
	}
}

func TestGetEvents_PassesFilters(t *testing.T) {
	logStub := &eventLogStub{events: []models.CycleEvent{
		{EventID: "ev-1", Appliance: "washer", Type: models.EventCycleFinished, OccurredAt: time.Now().UTC()},
	}}
	h := newTestHandler(&monitorStub{}, logStub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?type=cycle_finished&appliance=washer", nil)
	h.InitRoutes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if logStub.gotType != "cycle_finished" {
		t.Errorf("type query not forwarded, got %q", logStub.gotType)
	}
}

func TestGetEvents_RejectsBadTime(t *testing.T) {
	h := newTestHandler(&monitorStub{}, &eventLogStub{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?from=yesterday", nil)
	h.InitRoutes().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetEvents_ServiceErrorIs500(t *testing.T) {
	h := newTestHandler(&monitorStub{}, &eventLogStub{err: errors.New("db down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	h.InitRoutes().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&monitorStub{}, &eventLogStub{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.InitRoutes().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
