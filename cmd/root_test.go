package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tphakala/birdnet-array/internal/conf"
)

func TestRootCommandSubcommands(t *testing.T) {
	settings := &conf.Settings{Version: "1.2.3", BuildDate: "2024-01-01"}
	root := RootCommand(settings)

	assert.Equal(t, "birdnet-array", root.Name())
	assert.Contains(t, root.Version, "1.2.3")

	names := make([]string, 0, len(root.Commands()))
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"locate", "simulate", "serve", "support"})
}
