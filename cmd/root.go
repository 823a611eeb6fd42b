package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-array/cmd/locate"
	"github.com/tphakala/birdnet-array/cmd/serve"
	"github.com/tphakala/birdnet-array/cmd/simulate"
	"github.com/tphakala/birdnet-array/cmd/support"
	"github.com/tphakala/birdnet-array/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "birdnet-array",
		Short:   "Acoustic localization for synchronized recorder arrays",
		Long:    "birdnet-array estimates sound source positions from detection tables and time-synchronized recordings of a microphone array.",
		Version: fmt.Sprintf("%s (built %s)", settings.Version, settings.BuildDate),
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	// Add sub-commands to the root command.
	subcommands := []*cobra.Command{
		locate.Command(settings),
		simulate.Command(settings),
		serve.Command(settings),
		support.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
