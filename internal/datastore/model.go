package datastore

import (
	"time"
)

// Run records one invocation of the localization pipeline: the parameters
// it ran with and how its candidate events fared. Parameters are stored
// flat so a run is reproducible from its row alone.
type Run struct {
	ID         uint      `gorm:"primaryKey"`
	UUID       string    `gorm:"type:varchar(36);uniqueIndex"`
	StartedAt  time.Time `gorm:"index:idx_runs_started"`
	FinishedAt time.Time

	DetectionsFile string
	ReceiversFile  string
	ReceiverCount  int

	Algorithm         string `gorm:"type:varchar(20)"`
	CCFilter          string `gorm:"type:varchar(10)"`
	SpeedOfSound      float64
	MaxReceiverDist   float64
	MinReceivers      int
	CCThreshold       float64
	MaxDelay          float64
	ResidualThreshold float64
	Workers           int

	// Counters over the run's candidate events. EventCount =
	// LocalizedCount + RejectedCount.
	EventCount     int
	LocalizedCount int
	RejectedCount  int

	Events []LocalizedEvent `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// LocalizedEvent is one position estimate that survived residual
// validation, flattened for storage. Events rejected by the pipeline are
// not persisted; they only appear in run counters and export files.
type LocalizedEvent struct {
	ID    uint   `gorm:"primaryKey"`
	UUID  string `gorm:"type:varchar(36);uniqueIndex"`
	RunID uint   `gorm:"index:idx_events_run;index:idx_events_run_class"`

	Class string `gorm:"type:varchar(100);index:idx_events_run_class"`
	// Start and Duration are seconds relative to the recording start.
	Start    float64
	Duration float64

	// ReferenceFile is the receiver whose clock anchored the delay
	// estimates; ReceiverCount is how many receivers heard the event.
	ReferenceFile string
	ReceiverCount int

	// Estimated position in array coordinates, meters. Z is zero for
	// planar arrays.
	X float64
	Y float64
	Z float64

	// ResidualRMS is the validation error in meters over the full
	// receiver set. MeanCCMax averages correlation confidence over the
	// non-reference receivers.
	ResidualRMS float64
	MeanCCMax   float64

	// SolarPhase is dawn, day, dusk or night when the array location and
	// recording start are known, otherwise empty.
	SolarPhase string `gorm:"type:varchar(10)"`

	CreatedAt time.Time
}
