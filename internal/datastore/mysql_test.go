package datastore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/birdnet-array/internal/conf"
)

// TestMySQLStoreRoundTrip runs the save/load path against a disposable
// MySQL server. It needs a working container runtime, so it only runs
// when explicitly requested.
func TestMySQLStoreRoundTrip(t *testing.T) {
	if os.Getenv("MYSQL_INTEGRATION_TESTS") == "" {
		t.Skip("set MYSQL_INTEGRATION_TESTS=1 to run MySQL integration tests")
	}

	ctx := context.Background()
	ctr, err := tcmysql.Run(ctx, "mysql:8.4",
		tcmysql.WithDatabase("birdnet"),
		tcmysql.WithUsername("birdnet"),
		tcmysql.WithPassword("secret"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "Failed to start MySQL container")

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Output.MySQL.Enabled = true
	settings.Output.MySQL.Host = host
	settings.Output.MySQL.Port = port.Port()
	settings.Output.MySQL.Username = "birdnet"
	settings.Output.MySQL.Password = "secret"
	settings.Output.MySQL.Database = "birdnet"

	store := New(settings)
	require.NoError(t, store.Open(), "Failed to open MySQL store")
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	run := testRun(time.Now())
	events := []LocalizedEvent{
		testEvent("gryllus", 4.5),
		testEvent("tettigonia", 11.0),
	}
	require.NoError(t, store.SaveRun(run, events))

	loaded, err := store.GetRun(fmt.Sprintf("%d", run.ID))
	require.NoError(t, err)
	assert.Equal(t, run.UUID, loaded.UUID)
	assert.Equal(t, run.Algorithm, loaded.Algorithm)

	got, err := store.GetRunEvents(fmt.Sprintf("%d", run.ID), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, events[0].UUID, got[0].UUID)
	assert.Equal(t, events[1].UUID, got[1].UUID)
}
