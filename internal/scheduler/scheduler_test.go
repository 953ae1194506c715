package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"homedash/hub"
	"homedash/internal/cache"
)

// fakeHub is an in-memory HubClient with per-domain call counting.
type fakeHub struct {
	weather     *hub.Weather
	weatherErr  error
	forecast    []hub.ForecastDay
	forecastErr error
	tasks       map[string][]hub.TodoItem
	tasksErr    map[string]error
	events      map[string][]hub.CalendarEvent
	eventsErr   error
	sensor      *hub.BinarySensor
	sensorErr   error
	states      map[string]*hub.EntityState
	sun         *hub.Sun
	history     string
	historyErr  error

	calls map[string]int
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		tasks:    map[string][]hub.TodoItem{},
		tasksErr: map[string]error{},
		events:   map[string][]hub.CalendarEvent{},
		states:   map[string]*hub.EntityState{},
		calls:    map[string]int{},
	}
}

func (f *fakeHub) GetWeather(ctx context.Context, entityID string) (*hub.Weather, error) {
	f.calls["weather"]++
	return f.weather, f.weatherErr
}

func (f *fakeHub) GetForecast(ctx context.Context, entityID string) ([]hub.ForecastDay, error) {
	f.calls["forecast"]++
	return f.forecast, f.forecastErr
}

func (f *fakeHub) GetTodoItems(ctx context.Context, entityID string) ([]hub.TodoItem, error) {
	f.calls["tasks"]++
	return f.tasks[entityID], f.tasksErr[entityID]
}

func (f *fakeHub) GetCalendarEvents(ctx context.Context, entityID string, windowDays int) ([]hub.CalendarEvent, error) {
	f.calls["calendar"]++
	return f.events[entityID], f.eventsErr
}

func (f *fakeHub) GetBinarySensor(ctx context.Context, entityID string) (*hub.BinarySensor, error) {
	f.calls["mailbox"]++
	return f.sensor, f.sensorErr
}

func (f *fakeHub) GetEntityState(ctx context.Context, entityID string) (*hub.EntityState, error) {
	f.calls["state"]++
	return f.states[entityID], nil
}

func (f *fakeHub) GetSun(ctx context.Context, entityID string) (*hub.Sun, error) {
	f.calls["sun"]++
	return f.sun, nil
}

func (f *fakeHub) GetHistoryFirstOccurrence(ctx context.Context, entityID, targetState string) (string, error) {
	f.calls["history"]++
	return f.history, f.historyErr
}

var _ HubClient = (*fakeHub)(nil)

func testConfig() Config {
	return Config{
		WeatherEntity:    "weather.home",
		TaskLists:        []string{"todo.groceries"},
		Calendars:        []string{"calendar.family"},
		MailboxSensor:    "binary_sensor.mailbox",
		MailboxSwitch:    "switch.mail_check",
		WeatherInterval:  10 * time.Minute,
		ForecastInterval: 30 * time.Minute,
		TasksInterval:    5 * time.Minute,
		CalendarInterval: 15 * time.Minute,
		MailboxInterval:  time.Minute,
		Location:         time.UTC,
	}
}

func newTestScheduler(t *testing.T, fh *fakeHub) (*Scheduler, *cache.Store) {
	t.Helper()
	store := cache.Open(filepath.Join(t.TempDir(), "cache.json"), false)
	return New(fh, store, testConfig()), store
}

func TestFirstTickRefreshesEveryDomain(t *testing.T) {
	fh := newFakeHub()
	fh.weather = &hub.Weather{State: "sunny"}
	fh.sun = &hub.Sun{State: "above_horizon"}
	s, store := newTestScheduler(t, fh)

	s.Tick(context.Background(), time.Now(), true)

	for _, domain := range []string{"weather", "forecast", "tasks", "calendar", "mailbox", "sun"} {
		if fh.calls[domain] == 0 {
			t.Errorf("domain %s not fetched on first tick", domain)
		}
	}
	if store.Weather() == nil || store.Weather().State != "sunny" {
		t.Error("weather not committed to cache")
	}
	if store.Sun() == nil {
		t.Error("sun not committed to cache")
	}
}

func TestNoFetchWhenHubDown(t *testing.T) {
	fh := newFakeHub()
	s, _ := newTestScheduler(t, fh)

	s.Tick(context.Background(), time.Now(), false)

	if len(fh.calls) != 0 {
		t.Errorf("expected no hub calls while down, got %v", fh.calls)
	}
}

func TestIntervalHonoredAcrossFailures(t *testing.T) {
	fh := newFakeHub()
	fh.weatherErr = errors.New("hub choking")
	s, _ := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)
	if fh.calls["weather"] != 1 {
		t.Fatalf("weather calls = %d, want 1", fh.calls["weather"])
	}

	// A failed attempt still advances the timer: no retry before the
	// full interval has elapsed.
	s.Tick(context.Background(), start.Add(time.Second), true)
	s.Tick(context.Background(), start.Add(5*time.Minute), true)
	if fh.calls["weather"] != 1 {
		t.Errorf("weather retried early: %d calls", fh.calls["weather"])
	}

	s.Tick(context.Background(), start.Add(10*time.Minute), true)
	if fh.calls["weather"] != 2 {
		t.Errorf("weather calls after interval = %d, want 2", fh.calls["weather"])
	}
}

func TestWeatherErrorKeepsCache(t *testing.T) {
	fh := newFakeHub()
	fh.weather = &hub.Weather{State: "sunny"}
	s, store := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)

	fh.weatherErr = errors.New("boom")
	fh.weather = nil
	s.Tick(context.Background(), start.Add(10*time.Minute), true)

	if w := store.Weather(); w == nil || w.State != "sunny" {
		t.Errorf("failed fetch must keep cached weather, got %+v", w)
	}
}

func TestTasksEmptyResultKeepsNonEmptyCache(t *testing.T) {
	fh := newFakeHub()
	fh.tasks["todo.groceries"] = []hub.TodoItem{
		{UID: "a", Summary: "Milk"},
		{UID: "b", Summary: "Eggs"},
		{UID: "c", Summary: "Bread"},
	}
	s, store := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)
	if len(store.Tasks()) != 3 {
		t.Fatalf("expected 3 cached tasks, got %d", len(store.Tasks()))
	}

	// A successful-but-empty fetch must not wipe a populated cache.
	fh.tasks["todo.groceries"] = nil
	s.Tick(context.Background(), start.Add(5*time.Minute), true)
	if len(store.Tasks()) != 3 {
		t.Errorf("empty fetch wiped cache, %d tasks left", len(store.Tasks()))
	}
}

func TestTasksEmptyResultFillsEmptyCache(t *testing.T) {
	fh := newFakeHub()
	s, store := newTestScheduler(t, fh)

	s.Tick(context.Background(), time.Now(), true)
	if len(store.Tasks()) != 0 {
		t.Errorf("expected empty tasks, got %d", len(store.Tasks()))
	}
}

func TestTasksErrorLeavesCacheUntouched(t *testing.T) {
	fh := newFakeHub()
	fh.tasks["todo.groceries"] = []hub.TodoItem{{UID: "a", Summary: "Milk"}}
	s, store := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)

	fh.tasksErr["todo.groceries"] = errors.New("boom")
	s.Tick(context.Background(), start.Add(5*time.Minute), true)
	if len(store.Tasks()) != 1 {
		t.Errorf("error fetch changed cache, %d tasks", len(store.Tasks()))
	}
}

func TestCalendarAlwaysOverwrites(t *testing.T) {
	fh := newFakeHub()
	fh.events["calendar.family"] = []hub.CalendarEvent{
		{Summary: "Dinner", Start: time.Now().UTC().Format("2006-01-02") + "T18:00:00Z"},
	}
	s, store := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)
	if len(store.CalendarToday()) != 1 {
		t.Fatalf("expected 1 event today, got %d", len(store.CalendarToday()))
	}

	// An empty calendar day is real data, unlike an empty task fetch.
	fh.events["calendar.family"] = nil
	s.Tick(context.Background(), start.Add(15*time.Minute), true)
	if len(store.CalendarToday()) != 0 {
		t.Errorf("empty calendar fetch must clear the cache, got %d", len(store.CalendarToday()))
	}
}

func TestPartitionEvents(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	events := []hub.CalendarEvent{
		{Summary: "Future", Start: "2026-09-02T09:00:00Z"},
		{Summary: "Past", Start: "2026-08-28T09:00:00Z"},
		{Summary: "Evening", Start: "2026-08-29T18:00:00Z"},
		{Summary: "Morning", Start: "2026-08-29T08:00:00Z"},
		{Summary: "AllDayToday", Start: "2026-08-29"},
		{Summary: "Tomorrow", Start: "2026-08-30T10:00:00Z"},
	}

	today, upcoming := PartitionEvents(events, now)

	if len(today) != 3 {
		t.Fatalf("today = %d events, want 3", len(today))
	}
	// Sorted ascending by start string; the bare date sorts first.
	if today[0].Summary != "AllDayToday" || today[1].Summary != "Morning" || today[2].Summary != "Evening" {
		t.Errorf("today order = %v, %v, %v", today[0].Summary, today[1].Summary, today[2].Summary)
	}

	if len(upcoming) != 2 {
		t.Fatalf("upcoming = %d events, want 2", len(upcoming))
	}
	if upcoming[0].Summary != "Tomorrow" || upcoming[1].Summary != "Future" {
		t.Errorf("upcoming order = %v, %v", upcoming[0].Summary, upcoming[1].Summary)
	}
}

func TestPartitionEventsCapsUpcoming(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	var events []hub.CalendarEvent
	for day := 1; day <= 10; day++ {
		events = append(events, hub.CalendarEvent{
			Summary: "e",
			Start:   now.AddDate(0, 0, day).Format("2006-01-02"),
		})
	}

	_, upcoming := PartitionEvents(events, now)
	if len(upcoming) != 7 {
		t.Errorf("upcoming = %d events, want cap of 7", len(upcoming))
	}
}

func TestForceRefresh(t *testing.T) {
	fh := newFakeHub()
	s, _ := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)
	weatherCalls := fh.calls["weather"]

	// Nothing is due one second later.
	s.Tick(context.Background(), start.Add(time.Second), true)
	if fh.calls["weather"] != weatherCalls {
		t.Fatal("weather refreshed before its interval")
	}

	s.ForceRefresh()
	s.Tick(context.Background(), start.Add(2*time.Second), true)
	if fh.calls["weather"] != weatherCalls+1 {
		t.Error("ForceRefresh did not schedule an immediate weather refresh")
	}
}

func TestSunUsesFixedInterval(t *testing.T) {
	fh := newFakeHub()
	fh.sun = &hub.Sun{State: "above_horizon"}
	s, _ := newTestScheduler(t, fh)

	start := time.Now()
	s.Tick(context.Background(), start, true)
	s.Tick(context.Background(), start.Add(299*time.Second), true)
	if fh.calls["sun"] != 1 {
		t.Errorf("sun refreshed before 300s, calls = %d", fh.calls["sun"])
	}

	s.Tick(context.Background(), start.Add(300*time.Second), true)
	if fh.calls["sun"] != 2 {
		t.Errorf("sun calls after 300s = %d, want 2", fh.calls["sun"])
	}
}

func TestMailboxOpenedTodayFromHistory(t *testing.T) {
	fh := newFakeHub()
	fh.sensor = &hub.BinarySensor{State: "off"}
	fh.states["switch.mail_check"] = &hub.EntityState{State: "on"}
	fh.history = "2026-08-29T13:45:00+00:00"
	s, store := newTestScheduler(t, fh)

	now := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now, true)

	meta := store.MailboxMeta()
	if !meta.OpenedToday {
		t.Fatal("expected OpenedToday after history hit")
	}
	if meta.OpenedTime != "1:45 PM" {
		t.Errorf("opened time = %q, want 1:45 PM", meta.OpenedTime)
	}
	if meta.CheckDate != "2026-08-29" {
		t.Errorf("check date = %q", meta.CheckDate)
	}
}

func TestMailboxDayRolloverResetsMeta(t *testing.T) {
	fh := newFakeHub()
	fh.sensor = &hub.BinarySensor{State: "off"}
	s, store := newTestScheduler(t, fh)

	store.SetMailboxMeta(cache.MailboxMeta{
		OpenedToday: true,
		OpenedTime:  "1:45 PM",
		Cleared:     true,
		CheckDate:   "2026-08-28",
	})

	now := time.Date(2026, 8, 29, 0, 5, 0, 0, time.UTC)
	s.Tick(context.Background(), now, true)

	meta := store.MailboxMeta()
	if meta.OpenedToday || meta.Cleared || meta.OpenedTime != "" {
		t.Errorf("meta not reset on day rollover: %+v", meta)
	}
	if meta.CheckDate != "2026-08-29" {
		t.Errorf("check date = %q", meta.CheckDate)
	}
}

func TestMailboxSwitchOffAcknowledges(t *testing.T) {
	fh := newFakeHub()
	fh.sensor = &hub.BinarySensor{State: "off"}
	fh.states["switch.mail_check"] = &hub.EntityState{State: "off"}
	s, store := newTestScheduler(t, fh)

	now := time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	store.SetMailboxMeta(cache.MailboxMeta{
		OpenedToday: true,
		OpenedTime:  "1:45 PM",
		CheckDate:   now.Format("2006-01-02"),
		SwitchOn:    true,
	})

	s.Tick(context.Background(), now, true)

	meta := store.MailboxMeta()
	if !meta.Cleared {
		t.Error("switch off should clear the notification")
	}
	if meta.OpenedToday {
		t.Error("acknowledged notification should not show as opened")
	}
}

func TestOnResultHook(t *testing.T) {
	fh := newFakeHub()
	fh.weatherErr = errors.New("boom")
	s, _ := newTestScheduler(t, fh)

	results := map[Domain]error{}
	s.OnResult = func(domain Domain, updated bool, err error) {
		results[domain] = err
	}

	s.Tick(context.Background(), time.Now(), true)

	if err, ok := results[DomainWeather]; !ok || err == nil {
		t.Error("weather failure not reported via OnResult")
	}
	if err, ok := results[DomainTasks]; !ok || err != nil {
		t.Errorf("tasks result = %v, %v", ok, err)
	}
}
