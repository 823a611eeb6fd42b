package locate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-array/internal/conf"
)

// Command creates the locate command.
func Command(settings *conf.Settings) *cobra.Command {
	var bandpassSpec string

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Localize detections from synchronized array recordings",
		Long:  "Estimate sound source positions from a detection table and time-synchronized receiver recordings, then write, store and publish the results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// An explicit temperature derives the speed of sound; the
			// configured speed wins otherwise.
			if cmd.Flags().Changed("temperature") && !cmd.Flags().Changed("speed-of-sound") {
				settings.Localization.SpeedOfSound = 0
			}
			if bandpassSpec != "" {
				bands, err := conf.ParseBandpassSpec(bandpassSpec)
				if err != nil {
					return err
				}
				settings.Localization.Bandpass = bands
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runLocate(ctx, settings)
		},
	}

	// Set up flags specific to the 'locate' command
	if err := setupFlags(cmd, settings, &bandpassSpec); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	cmd.MarkFlagsMutuallyExclusive("temperature", "speed-of-sound")

	return cmd
}

// setupFlags configures flags specific to the locate command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings, bandpassSpec *string) error {
	cmd.Flags().StringVar(&settings.Input.Detections, "detections", "", "Path to the detection table (csv or json)")
	cmd.Flags().StringVar(&settings.Input.AudioDir, "audio-dir", "", "Base directory for receiver audio files named in the detection table")
	cmd.Flags().StringVar(&settings.Array.Receivers, "receivers", viper.GetString("array.receivers"), "Path to the receiver coordinates file (yaml or csv)")
	cmd.Flags().StringVar(&settings.Array.RecordingStart, "recording-start", viper.GetString("array.recordingstart"), "Recording start in RFC 3339, maps event offsets to wall clock")
	cmd.Flags().StringVar(&settings.Localization.Algorithm, "algorithm", viper.GetString("localization.algorithm"), "Position solver (\"gillette\" or \"soundfinder\")")
	cmd.Flags().Float64Var(&settings.Localization.MaxReceiverDist, "max-receiver-dist", viper.GetFloat64("localization.maxreceiverdist"), "Receivers within this many meters of the reference join its event")
	cmd.Flags().IntVar(&settings.Localization.MinReceivers, "min-receivers", viper.GetInt("localization.minreceivers"), "Minimum receivers required to attempt localization")
	cmd.Flags().Float64Var(&settings.Localization.CCThreshold, "cc-threshold", viper.GetFloat64("localization.ccthreshold"), "Cross-correlation peak a receiver must exceed to survive filtering")
	cmd.Flags().StringVar(&settings.Localization.CCFilter, "cc-filter", viper.GetString("localization.ccfilter"), "Cross-correlation weighting (\"phat\" or \"cc\")")
	cmd.Flags().Float64Var(&settings.Localization.MaxDelay, "max-delay", viper.GetFloat64("localization.maxdelay"), "Plausible delay bound in seconds, 0 for unbounded")
	cmd.Flags().Float64Var(&settings.Localization.ResidualThreshold, "residual-threshold", viper.GetFloat64("localization.residualthreshold"), "Residual RMS in meters above which an estimate is rejected, 0 for unbounded")
	cmd.Flags().StringVar(bandpassSpec, "bandpass", "", "Per-class bandpass bands in Hz (\"CLASS:low-high,...\")")
	cmd.Flags().Float64Var(&settings.Localization.SpeedOfSound, "speed-of-sound", viper.GetFloat64("localization.speedofsound"), "Speed of sound in m/s")
	cmd.Flags().Float64Var(&settings.Localization.Temperature, "temperature", viper.GetFloat64("localization.temperature"), "Air temperature in Celsius, derives the speed of sound")
	cmd.Flags().IntVar(&settings.Localization.Workers, "workers", viper.GetInt("localization.workers"), "Events localized concurrently")
	cmd.Flags().StringVar(&settings.Output.File.Path, "output", viper.GetString("output.file.path"), "Directory for result files")
	cmd.Flags().StringSliceVar(&settings.Output.File.Formats, "formats", viper.GetStringSlice("output.file.formats"), "Result file formats (csv, json)")

	if err := cmd.MarkFlagRequired("detections"); err != nil {
		return err
	}

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
