package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/model"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/core/tracker"
	"github.com/michaelayoade/dotmac-ftth-ops-sub005/infra/logger"
)

// locationTopic is the shared subscription for technician position reports.
// The technician ID is the third topic segment.
const locationTopic = "field/technicians/+/location"

// locationPayload is the wire form of a position report. The timestamp is
// unix milliseconds; a missing technician_id falls back to the topic segment.
type locationPayload struct {
	TechnicianID string  `json:"technician_id,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	TimestampMS  int64   `json:"timestamp_ms"`
}

// LocationIngestor subscribes to technician location topics and feeds the
// samples into the tracker. Stale and out-of-order samples are counted and
// dropped by the tracker, not treated as transport errors.
type LocationIngestor struct {
	trk *tracker.Tracker
	log logger.Logger
}

// NewLocationIngestor creates an ingestor feeding the given tracker.
func NewLocationIngestor(trk *tracker.Tracker) *LocationIngestor {
	return &LocationIngestor{trk: trk, log: logger.New("location_ingestor")}
}

// Subscribe attaches the ingestor to the connected client.
func (i *LocationIngestor) Subscribe(p *PahoClient, qos byte) error {
	token := p.cli.Subscribe(locationTopic, qos, i.onMessage)
	token.Wait()
	return token.Error()
}

func (i *LocationIngestor) onMessage(_ paho.Client, msg paho.Message) {
	var payload locationPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		i.log.Errorf("failed to decode location report on %s: %v", msg.Topic(), err)
		return
	}
	techID := payload.TechnicianID
	if techID == "" {
		techID = technicianFromTopic(msg.Topic())
	}
	if techID == "" {
		i.log.Warnf("location report without technician on %s", msg.Topic())
		return
	}
	sample := model.LocationSample{
		TechnicianID: techID,
		Location:     model.Coordinate{Lat: payload.Lat, Lon: payload.Lon},
		Timestamp:    time.UnixMilli(payload.TimestampMS),
	}
	if err := i.trk.Report(sample); err != nil {
		if errors.Is(err, tracker.ErrStaleSample) {
			i.log.Debugf("dropped stale sample for %s", techID)
			return
		}
		i.log.Errorf("location report for %s: %v", techID, err)
	}
}

// technicianFromTopic extracts the ID segment from
// field/technicians/<id>/location.
func technicianFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "field" || parts[1] != "technicians" || parts[3] != "location" {
		return ""
	}
	return parts[2]
}
