// scenario.go: synthetic ground-truth scenario generation.
package simulate

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/birdnet-array/internal/geom"
	"github.com/tphakala/birdnet-array/internal/myaudio"
)

const (
	sampleRate  = 24000
	clipSeconds = 3.0
	// emitAt is when the simulated source emits, seconds into the clips.
	// The detection window has to contain the pulse on every receiver.
	emitAt      = 1.0
	windowStart = 0.0
	windowEnd   = 2.0
	className   = "simulated"
)

type scenarioParams struct {
	outDir     string
	receivers  int
	sourceSpec string
	noise      float64
	seed       uint64

	source       geom.Point
	speedOfSound float64
}

// runSimulate writes one clip per receiver with the pulse shifted by its
// propagation delay, plus the coordinates file and detection table that
// feed the locate command.
func runSimulate(p *scenarioParams) error {
	if p.receivers < 3 {
		return fmt.Errorf("a scenario needs at least 3 receivers, got %d", p.receivers)
	}
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return fmt.Errorf("error creating scenario directory: %w", err)
	}

	positions := receiverPositions(p.receivers)
	rng := rand.New(rand.NewPCG(p.seed, p.seed))
	pulse := chirp(sampleRate)

	coords := make(map[string][]float64, p.receivers)
	names := make([]string, p.receivers)
	for i, pos := range positions {
		name := fmt.Sprintf("receiver-%d.wav", i+1)
		names[i] = name
		coords[name] = pos

		delay, err := geom.TravelTime(p.source, pos, p.speedOfSound)
		if err != nil {
			return err
		}
		arrival := emitAt + delay
		if arrival+float64(len(pulse))/sampleRate > clipSeconds {
			return fmt.Errorf("source is %.0f m from %s, the pulse arrives after the clip ends", delay*p.speedOfSound, name)
		}

		samples := make([]float64, int(clipSeconds*sampleRate))
		copy(samples[int(math.Round(arrival*sampleRate)):], pulse)
		if p.noise > 0 {
			for j := range samples {
				samples[j] += p.noise * rng.NormFloat64()
			}
		}

		if err := myaudio.WriteWAV(filepath.Join(p.outDir, name), samples, sampleRate); err != nil {
			return err
		}
	}

	receiversPath := filepath.Join(p.outDir, "receivers.yaml")
	if err := writeCoordinates(receiversPath, coords); err != nil {
		return err
	}
	detectionsPath := filepath.Join(p.outDir, "detections.csv")
	if err := writeDetections(detectionsPath, names); err != nil {
		return err
	}

	fmt.Printf("Scenario with %d receivers written to %s\n", p.receivers, p.outDir)
	fmt.Printf("Expected position: x=%.3f y=%.3f\n", p.source[0], p.source[1])
	fmt.Printf("Localize it with:\n  birdnet-array locate --detections %s --receivers %s --audio-dir %s\n",
		detectionsPath, receiversPath, p.outDir)

	return nil
}

// parseSource parses an "x,y" position in meters.
func parseSource(spec string) (geom.Point, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid source %q, want \"x,y\"", spec)
	}
	point := make(geom.Point, len(parts))
	for i, part := range parts {
		value, err := cast.ToFloat64E(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid source coordinate %q", part)
		}
		point[i] = value
	}
	return point, nil
}

// receiverPositions places n receivers evenly on a circle around (5, 5),
// phased so that four receivers land on the corners of a 10 m square.
// Coordinates are rounded to millimeters to keep the files tidy.
func receiverPositions(n int) []geom.Point {
	const centerX, centerY = 5.0, 5.0
	radius := 5 * math.Sqrt2

	positions := make([]geom.Point, n)
	for k := range positions {
		angle := 2*math.Pi*float64(k)/float64(n) + math.Pi/4
		positions[k] = geom.Point{
			roundMilli(centerX + radius*math.Cos(angle)),
			roundMilli(centerY + radius*math.Sin(angle)),
		}
	}
	return positions
}

func roundMilli(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// chirp returns a 0.2 s linear sweep from 400 to 1600 Hz, loud enough to
// stand clear of the noise floor.
func chirp(sampleRate int) []float64 {
	n := sampleRate / 5
	out := make([]float64, n)
	total := float64(n) / float64(sampleRate)
	for i := range out {
		ts := float64(i) / float64(sampleRate)
		f := 400 + (1600-400)*ts/(2*total)
		out[i] = 0.8 * math.Sin(2*math.Pi*f*ts)
	}
	return out
}

func writeCoordinates(path string, coords map[string][]float64) error {
	data, err := yaml.Marshal(coords)
	if err != nil {
		return fmt.Errorf("error encoding receiver coordinates: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// writeDetections writes a table where every receiver hears the class in
// the window the pulse falls into.
func writeDetections(path string, files []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"file", "start_time", "end_time", className}); err != nil {
		_ = f.Close()
		return err
	}
	for _, file := range files {
		row := []string{file, formatSeconds(windowStart), formatSeconds(windowEnd), "1"}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
