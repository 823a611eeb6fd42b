// dto.go: data transfer objects for MQTT publishing.
package mqtt

import (
	"time"

	"github.com/tphakala/birdnet-array/internal/datastore"
)

// EventDTO is the JSON message published for each localized event. Field
// names are part of the MQTT contract consumed by downstream automations.
type EventDTO struct {
	Source        string  `json:"source"` // array node name
	RunID         string  `json:"runId"`  // run UUID
	EventID       string  `json:"eventId"`
	Class         string  `json:"class"`
	Start         float64 `json:"start"`    // seconds from recording start
	Duration      float64 `json:"duration"` // seconds
	DetectedAt    string  `json:"detectedAt,omitempty"` // RFC 3339 wall clock, when the recording start is known
	ReferenceFile string  `json:"referenceFile"`
	ReceiverCount int     `json:"receiverCount"`
	X             float64 `json:"x"` // meters, array frame
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	ResidualRMS   float64 `json:"residualRms"` // meters
	MeanCCMax     float64 `json:"meanCcMax"`
	SolarPhase    string  `json:"solarPhase,omitempty"`
	Algorithm     string  `json:"algorithm,omitempty"`
}

// NewEventDTO builds the publishable payload for one localized event.
// recordingStart maps the event offset to wall clock; pass the zero time
// when the recording start is unknown.
func NewEventDTO(source string, run *datastore.Run, event *datastore.LocalizedEvent, recordingStart time.Time) *EventDTO {
	dto := &EventDTO{
		Source:        source,
		RunID:         run.UUID,
		EventID:       event.UUID,
		Class:         event.Class,
		Start:         event.Start,
		Duration:      event.Duration,
		ReferenceFile: event.ReferenceFile,
		ReceiverCount: event.ReceiverCount,
		X:             event.X,
		Y:             event.Y,
		Z:             event.Z,
		ResidualRMS:   event.ResidualRMS,
		MeanCCMax:     event.MeanCCMax,
		SolarPhase:    event.SolarPhase,
		Algorithm:     run.Algorithm,
	}

	if !recordingStart.IsZero() {
		detectedAt := recordingStart.Add(time.Duration(event.Start * float64(time.Second)))
		dto.DetectedAt = detectedAt.Format(time.RFC3339)
	}

	return dto
}
