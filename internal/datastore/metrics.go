package datastore

import (
	"github.com/tphakala/birdnet-array/internal/observability/metrics"
)

// Metrics aliases the observability datastore collector so store methods
// can record without importing the metrics package everywhere.
type Metrics = metrics.DatastoreMetrics
