package simulate

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-array/internal/conf"
)

// Command creates the simulate command.
func Command(settings *conf.Settings) *cobra.Command {
	params := scenarioParams{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic array scenario with known ground truth",
		Long:  "Write WAV clips carrying per-receiver propagation delays, a receiver coordinates file and a detection table for a simulated source, for validating the localization pipeline end to end.",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseSource(params.sourceSpec)
			if err != nil {
				return err
			}
			params.source = source
			params.speedOfSound = settings.Localization.ResolveSpeedOfSound()
			return runSimulate(&params)
		},
	}

	setupFlags(cmd, &params)

	return cmd
}

// setupFlags configures flags specific to the simulate command. The
// scenario is self-contained, so nothing binds into the configuration.
func setupFlags(cmd *cobra.Command, params *scenarioParams) {
	cmd.Flags().StringVar(&params.outDir, "out", "", "Directory the scenario is written to")
	cmd.Flags().IntVar(&params.receivers, "receivers", 4, "Number of receivers placed around the array center")
	cmd.Flags().StringVar(&params.sourceSpec, "source", "5,5", "Source position in meters (\"x,y\")")
	cmd.Flags().Float64Var(&params.noise, "noise", 0.05, "Gaussian noise level added to every sample")
	cmd.Flags().Uint64Var(&params.seed, "seed", 1, "Noise generator seed, for reproducible scenarios")

	_ = cmd.MarkFlagRequired("out")
}
