package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/dispatch/logging"
)

type memStore struct{ recs []logging.LogRecord }

func (m *memStore) Append(_ context.Context, r logging.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	var res []logging.LogRecord
	for _, r := range m.recs {
		if q.Matches(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestLogHandler_AuthAndFilters(t *testing.T) {
	store := &memStore{}
	if err := store.Append(context.Background(), logging.LogRecord{
		Timestamp:   time.Now(),
		WorkOrderID: "wo-1",
		ChosenTech:  "tech-1",
		Outcome:     "assigned",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(context.Background(), logging.LogRecord{
		Timestamp:   time.Now(),
		WorkOrderID: "wo-2",
		ChosenTech:  "tech-2",
		Outcome:     "rejected",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	h := NewLogHandler(store, "tok")

	req := httptest.NewRequest("GET", "/api/dispatch/logs?technician_id=tech-1", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []logging.LogRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].WorkOrderID != "wo-1" {
		t.Fatalf("unexpected records: %+v", out)
	}
	// unauthorized
	req = httptest.NewRequest("GET", "/api/dispatch/logs", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestLogHandler_TimeRange(t *testing.T) {
	store := &memStore{}
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_ = store.Append(context.Background(), logging.LogRecord{
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
			WorkOrderID: "wo",
		})
	}
	h := NewLogHandler(store, "")

	url := "/api/dispatch/logs?start=" + base.Add(30*time.Minute).Format(time.RFC3339) +
		"&end=" + base.Add(90*time.Minute).Format(time.RFC3339)
	req := httptest.NewRequest("GET", url, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []logging.LogRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record in range, got %d", len(out))
	}
}
