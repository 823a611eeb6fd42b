package serve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-array/internal/api"
	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/datastore"
	"github.com/tphakala/birdnet-array/internal/observability"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored localization results over HTTP",
		Long:  "Start the read-only HTTP API over previously stored localization runs, with Prometheus metrics on /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the HTTP API")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

func runServe(settings *conf.Settings) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("serving results requires a datastore, enable output.sqlite or output.mysql")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	store.SetMetrics(metrics.Datastore)

	server, err := api.New(settings, api.WithDataStore(store), api.WithMetrics(metrics))
	if err != nil {
		return err
	}

	fmt.Printf("Serving localization results on port %s\n", settings.WebServer.Port)
	return server.StartWithGracefulShutdown()
}
