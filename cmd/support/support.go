package support

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdnet-array/internal/conf"
	"github.com/tphakala/birdnet-array/internal/diagnostics"
)

// Command creates the support command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "support",
		Short: "Collect a diagnostics archive for troubleshooting",
		Long:  "Write a zip archive with host diagnostics and the scrubbed configuration, safe to attach to a support request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return collect(settings)
		},
	}
}

func collect(settings *conf.Settings) error {
	fmt.Println("Collecting support data...")

	host := diagnostics.Collect(".")
	dump := diagnostics.NewDump(settings.Version, host)

	// The archived config copy is scrubbed of credentials and service
	// URLs; a missing config file just leaves it out.
	var configYAML []byte
	if configPath, err := conf.FindConfigFile(); err == nil {
		if content, err := os.ReadFile(configPath); err == nil {
			configYAML = []byte(diagnostics.ScrubConfig(string(content)))
		}
	}

	filename := fmt.Sprintf("birdnet-array-support-%s.zip", dump.ID)
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("error creating archive: %w", err)
	}
	if err := diagnostics.WriteArchive(f, dump, configYAML); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Support data collected and saved to: %s\n", filename)
	return nil
}
