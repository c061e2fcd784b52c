package technicians

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/registry"
)

// StatusEntry is the wire form of a technician's live state.
type StatusEntry struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	Skills      []model.Skill    `json:"skills"`
	Location    model.Coordinate `json:"location"`
	LocationAt  time.Time        `json:"location_at"`
	Stale       bool             `json:"stale"`
	Workload    int              `json:"workload"`
	ActiveOrder string           `json:"active_order,omitempty"`
}

// NewStatusHandler returns an HTTP handler exposing technician live state via
// GET /api/technicians/status. A location older than staleAfter is flagged
// stale. Optional query filters: service_area, skill, status.
func NewStatusHandler(reg *registry.Registry, staleAfter time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		area := r.URL.Query().Get("service_area")
		skill := model.Skill(r.URL.Query().Get("skill"))
		status := r.URL.Query().Get("status")
		now := time.Now()

		entries := make([]StatusEntry, 0)
		for _, t := range reg.Snapshot() {
			if area != "" && !t.CoversArea(area) {
				continue
			}
			if skill != "" && !t.HasSkills([]model.Skill{skill}) {
				continue
			}
			if status != "" && t.Status.String() != status {
				continue
			}
			entries = append(entries, StatusEntry{
				ID:          t.ID,
				Status:      t.Status.String(),
				Skills:      t.Skills,
				Location:    t.Location,
				LocationAt:  t.LocationAt,
				Stale:       !t.LocationAt.IsZero() && now.Sub(t.LocationAt) > staleAfter,
				Workload:    t.Workload(),
				ActiveOrder: t.ActiveOrder,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
