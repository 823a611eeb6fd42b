// Package metrics provides Prometheus collectors for the application's
// components. Each collector registers itself on a shared registry and
// exposes typed Record methods so callers never touch label plumbing.
package metrics

// Histogram bucket configuration shared across collectors.
const (
	// BucketStart1ms starts millisecond-scale histograms (1ms to ~32s
	// with BucketCount15).
	BucketStart1ms = 0.001
	// BucketStart100ms starts histograms for whole pipeline runs
	// (100ms to ~3.4min with BucketCount12).
	BucketStart100ms = 0.1
	// BucketStart1cm starts residual histograms in meters (1cm to
	// ~164m with BucketCount15).
	BucketStart1cm = 0.01
	// BucketStart64B starts message size histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the exponential growth factor shared by the
	// duration and size histograms.
	BucketFactor2 = 2

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)
