// run.go: the localize-store-publish pipeline behind the locate command.
package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/detections"
	"github.com/tphakala/birdnet-array/internal/dsp"
	"github.com/tphakala/birdnet-array/internal/export"
	"github.com/tphakala/birdnet-array/internal/localization"
	"github.com/tphakala/birdnet-array/internal/mqtt"
	"github.com/tphakala/birdnet-array/internal/myaudio"
	"github.com/tphakala/birdnet-array/internal/notify"
	"github.com/tphakala/birdnet-array/internal/observability"
	"github.com/tphakala/birdnet-array/internal/solar"
)

// segmentCacheTTL keeps decoded audio around long enough for overlapping
// candidate events to share it without pinning a whole run's audio.
const segmentCacheTTL = 5 * time.Minute

// runLocate executes one localization run: load inputs, localize, then
// fan the results out to the configured outputs.
func runLocate(ctx context.Context, settings *conf.Settings) error {
	started := time.Now()

	// Parse enum settings up front so typos fail before any file IO.
	algorithm, err := localization.ParseAlgorithm(settings.Localization.Algorithm)
	if err != nil {
		return err
	}
	ccFilter, err := dsp.ParseCCFilter(settings.Localization.CCFilter)
	if err != nil {
		return err
	}
	recordingStart, err := parseRecordingStart(settings.Array.RecordingStart)
	if err != nil {
		return err
	}

	coords, err := conf.LoadReceivers(settings.Array.Receivers)
	if err != nil {
		return err
	}
	table, err := detections.Load(settings.Input.Detections)
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	array, err := localization.NewArray(coords, segmentSource(settings.Input.AudioDir))
	if err != nil {
		return err
	}

	bandpass := make(map[string]localization.BandpassRange, len(settings.Localization.Bandpass))
	for class, band := range settings.Localization.Bandpass {
		bandpass[class] = localization.BandpassRange{Low: band.Low, High: band.High}
	}

	opts := localization.Options{
		MaxReceiverDist:   settings.Localization.MaxReceiverDist,
		MinReceivers:      settings.Localization.MinReceivers,
		Algorithm:         algorithm,
		CCThreshold:       settings.Localization.CCThreshold,
		CCFilter:          ccFilter,
		MaxDelay:          settings.Localization.MaxDelay,
		BandpassRanges:    bandpass,
		ResidualThreshold: settings.Localization.ResidualThreshold,
		SpeedOfSound:      settings.Localization.ResolveSpeedOfSound(),
		Workers:           settings.Localization.Workers,
	}

	fmt.Printf("Localizing %d detection rows of %d classes across %d receivers\n",
		table.Len(), len(table.Classes()), len(coords))

	localized, unlocalized, err := array.LocalizeDetections(ctx, table, opts)
	if err != nil {
		return err
	}

	run, rows := buildRun(settings, opts, len(coords), localized, unlocalized, started, recordingStart)

	if store := datastore.New(settings); store != nil {
		if err := store.Open(); err != nil {
			return err
		}
		defer store.Close()
		store.SetMetrics(metrics.Datastore)
		if err := store.SaveRun(run, rows); err != nil {
			return err
		}
		fmt.Printf("Run %s saved with %d localized events\n", run.UUID, len(rows))
	}

	if settings.Output.File.Enabled {
		baseName := "run-" + run.UUID[:8]
		paths, err := export.WriteFiles(settings.Output.File.Path, baseName,
			settings.Output.File.Formats, localized, unlocalized)
		if err != nil {
			return err
		}
		fmt.Printf("Results written to %s\n", strings.Join(paths, ", "))

		if settings.Output.File.Upload.Enabled {
			uploader, err := export.NewUploader(settings.Output.File.Upload)
			if err != nil {
				return err
			}
			if err := export.UploadAll(ctx, uploader, paths); err != nil {
				return err
			}
			fmt.Printf("Results uploaded over %s to %s\n", uploader.Name(), settings.Output.File.Upload.Host)
		}
	}

	if settings.Output.MQTT.Enabled && len(rows) > 0 {
		if err := publishEvents(ctx, settings, metrics, run, rows, recordingStart); err != nil {
			return err
		}
		fmt.Printf("Published %d events to %s\n", len(rows), settings.Output.MQTT.Topic)
	}

	notifier, err := notify.NewNotifier(settings)
	if err != nil {
		return err
	}
	if notifier.Enabled() {
		// A missed notification is not worth failing a finished run over.
		if err := notifier.Send(ctx, notify.RunSummary(run)); err != nil {
			fmt.Printf("Warning: run notification failed: %v\n", err)
		}
	}

	fmt.Printf("Localized %d of %d events in %s\n",
		len(localized), len(localized)+len(unlocalized), time.Since(started).Round(time.Millisecond))

	return nil
}

// segmentSource builds the audio loader chain: a TTL cache to absorb
// repeated loads of the same clip window, rooted at the audio directory
// when one is set.
func segmentSource(audioDir string) localization.SegmentSource {
	cache := myaudio.NewCachingLoader(segmentCacheTTL)
	if audioDir == "" {
		return cache
	}
	return &myaudio.DirLoader{Dir: audioDir, Next: cache}
}

func parseRecordingStart(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	start, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid recording start %q, want RFC 3339: %w", value, err)
	}
	return start, nil
}

// buildRun converts the pipeline results into datastore records and tags
// localized events with the solar phase when the array's place on earth
// and the recording start are known.
func buildRun(settings *conf.Settings, opts localization.Options, receiverCount int,
	localized, unlocalized []*localization.Event, started time.Time, recordingStart time.Time,
) (*datastore.Run, []datastore.LocalizedEvent) {
	run := &datastore.Run{
		UUID:              uuid.New().String(),
		StartedAt:         started,
		FinishedAt:        time.Now(),
		DetectionsFile:    settings.Input.Detections,
		ReceiversFile:     settings.Array.Receivers,
		ReceiverCount:     receiverCount,
		Algorithm:         string(opts.Algorithm),
		CCFilter:          string(opts.CCFilter),
		SpeedOfSound:      opts.SpeedOfSound,
		MaxReceiverDist:   opts.MaxReceiverDist,
		MinReceivers:      opts.MinReceivers,
		CCThreshold:       opts.CCThreshold,
		MaxDelay:          opts.MaxDelay,
		ResidualThreshold: opts.ResidualThreshold,
		Workers:           opts.Workers,
		EventCount:        len(localized) + len(unlocalized),
		LocalizedCount:    len(localized),
		RejectedCount:     len(unlocalized),
	}

	var calc *solar.Calculator
	if (settings.Array.Latitude != 0 || settings.Array.Longitude != 0) && !recordingStart.IsZero() {
		calc = solar.NewCalculator(settings.Array.Latitude, settings.Array.Longitude)
	}

	rows := make([]datastore.LocalizedEvent, 0, len(localized))
	for _, event := range localized {
		row := datastore.LocalizedEvent{
			UUID:          uuid.New().String(),
			Class:         event.Class,
			Start:         event.Start,
			Duration:      event.Duration,
			ReferenceFile: event.ReceiverFiles[0],
			ReceiverCount: len(event.ReceiverFiles),
			X:             event.Estimate[0],
			Y:             event.Estimate[1],
			ResidualRMS:   event.ResidualRMS,
			MeanCCMax:     event.MeanCCMax(),
		}
		if len(event.Estimate) > 2 {
			row.Z = event.Estimate[2]
		}
		if calc != nil {
			at := recordingStart.Add(time.Duration(event.Start * float64(time.Second)))
			// Polar dates without the full sun cycle stay untagged.
			if phase, err := calc.PhaseAt(at); err == nil {
				row.SolarPhase = string(phase)
			}
		}
		rows = append(rows, row)
	}

	return run, rows
}

// publishEvents pushes one MQTT message per localized event.
func publishEvents(ctx context.Context, settings *conf.Settings, metrics *observability.Metrics,
	run *datastore.Run, rows []datastore.LocalizedEvent, recordingStart time.Time,
) error {
	client, err := mqtt.NewClient(settings, metrics)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Disconnect()

	for i := range rows {
		payload, err := json.Marshal(mqtt.NewEventDTO(settings.Main.Name, run, &rows[i], recordingStart))
		if err != nil {
			return fmt.Errorf("error encoding event %s: %w", rows[i].UUID, err)
		}
		if err := client.Publish(ctx, settings.Output.MQTT.Topic, string(payload)); err != nil {
			return err
		}
	}
	return nil
}
