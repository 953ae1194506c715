package cmd_test

import (
	"testing"

	"homedash/hub"
	"homedash/internal/cache"
	"homedash/internal/credentials"
	"homedash/internal/testutil"
)

func TestVersion(t *testing.T) {
	c := testutil.NewCLITest(t)
	out := c.MustExecute("--version")
	testutil.AssertContains(t, out, "homedash version")
}

func TestHelpListsCommands(t *testing.T) {
	c := testutil.NewCLITest(t)
	out := c.MustExecute("--help")
	for _, sub := range []string{"run", "status", "complete", "ack-mailbox", "watch", "token", "telemetry"} {
		testutil.AssertContains(t, out, sub)
	}
}

func TestUnknownCommand(t *testing.T) {
	c := testutil.NewCLITest(t)
	_, stderr := c.ExecuteAndFail("bogus")
	testutil.AssertContains(t, stderr, "bogus")
}

func TestStatusWithoutDaemon(t *testing.T) {
	c := testutil.NewCLITest(t)

	out := c.MustExecute("status")
	testutil.AssertContains(t, out, "Hub: offline")
	testutil.AssertContains(t, out, "daemon: not running")
	testutil.AssertContains(t, out, "daemon not running; showing cached data")
}

func TestStatusShowsCachedData(t *testing.T) {
	c := testutil.NewCLITest(t)

	store := cache.Open(c.CachePath(), false)
	temp := 19.5
	store.SetWeather(&hub.Weather{State: "rainy", Temperature: &temp, TemperatureUnit: "°C"})
	store.SetTasks([]hub.TodoItem{
		{UID: "uid-1", Summary: "Water the plants"},
		{UID: "uid-2", Summary: "Call plumber", Due: "2026-09-01"},
	})

	out := c.MustExecute("status")
	testutil.AssertContains(t, out, "Rainy")
	testutil.AssertContains(t, out, "Tasks: 2")
	testutil.AssertContains(t, out, "Water the plants")
	testutil.AssertContains(t, out, "due 2026-09-01")
}

func TestStatusInvalidConfig(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.SetFullConfig("hub:\n  url: homeassistant.local:8123\n")

	_, stderr := c.ExecuteAndFail("status")
	testutil.AssertContains(t, stderr, "hub.url")
}

func TestTickRequiresToken(t *testing.T) {
	c := testutil.NewCLITest(t)
	t.Setenv(credentials.EnvToken, "")

	_, stderr := c.ExecuteAndFail("tick")
	testutil.AssertContains(t, stderr, credentials.EnvToken)
}

func TestCompleteQueuesWhenHubUnreachable(t *testing.T) {
	c := testutil.NewCLITest(t)
	t.Setenv(credentials.EnvToken, "test-token")

	store := cache.Open(c.CachePath(), false)
	store.SetTasks([]hub.TodoItem{{UID: "uid-1", Summary: "Water the plants"}})

	// The test config points at 127.0.0.1:18123 where nothing listens, so
	// the completion cannot be delivered and must be queued.
	out := c.MustExecute("complete", "uid-1", "--summary", "Water the plants")
	testutil.AssertContains(t, out, "queued for when the hub is back")

	// The cached task disappears immediately and the queue survives in the
	// cache file for the next status call.
	statusOut := c.MustExecute("status")
	testutil.AssertNotContains(t, statusOut, "Water the plants")
	testutil.AssertContains(t, statusOut, "Queued actions: 1")
}

func TestCompleteRequiresUID(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.ExecuteAndFail("complete")
}

func TestRefreshWithoutDaemon(t *testing.T) {
	c := testutil.NewCLITest(t)
	_, stderr := c.ExecuteAndFail("refresh")
	testutil.AssertContains(t, stderr, "not reachable")
}

func TestTokenShowWithEnv(t *testing.T) {
	c := testutil.NewCLITest(t)
	t.Setenv(credentials.EnvToken, "eyJhbGciOiJIUzI1NiJ9.secret")

	out := c.MustExecute("token", "show")
	testutil.AssertContains(t, out, "source: environment")
	testutil.AssertContains(t, out, "eyJh...cret")
	testutil.AssertNotContains(t, out, "eyJhbGciOiJIUzI1NiJ9.secret")
}

func TestTelemetryShowEmpty(t *testing.T) {
	c := testutil.NewCLITest(t)
	out := c.MustExecute("telemetry", "show")
	testutil.AssertContains(t, out, "no events recorded")
}

func TestTelemetryCleanupEmpty(t *testing.T) {
	c := testutil.NewCLITest(t)
	out := c.MustExecute("telemetry", "cleanup")
	testutil.AssertContains(t, out, "deleted 0 events")
}
