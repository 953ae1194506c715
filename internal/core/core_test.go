package core

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"homedash/hub"
	"homedash/internal/cache"
	"homedash/internal/netcheck"
	"homedash/internal/notify"
	"homedash/internal/scheduler"
)

// fakeHub records every call in order so tests can assert that queued
// actions replay before the forced refresh fetches.
type fakeHub struct {
	ops []string

	tasks     []hub.TodoItem
	sensor    *hub.BinarySensor
	history   string
	completed []string
	switched  []string

	completeErr error
	switchErr   error
}

func (f *fakeHub) GetWeather(ctx context.Context, entityID string) (*hub.Weather, error) {
	f.ops = append(f.ops, "weather")
	return &hub.Weather{State: "cloudy"}, nil
}

func (f *fakeHub) GetForecast(ctx context.Context, entityID string) ([]hub.ForecastDay, error) {
	f.ops = append(f.ops, "forecast")
	return nil, nil
}

func (f *fakeHub) GetTodoItems(ctx context.Context, entityID string) ([]hub.TodoItem, error) {
	f.ops = append(f.ops, "tasks")
	return f.tasks, nil
}

func (f *fakeHub) GetCalendarEvents(ctx context.Context, entityID string, windowDays int) ([]hub.CalendarEvent, error) {
	f.ops = append(f.ops, "calendar")
	return nil, nil
}

func (f *fakeHub) GetBinarySensor(ctx context.Context, entityID string) (*hub.BinarySensor, error) {
	f.ops = append(f.ops, "mailbox")
	return f.sensor, nil
}

func (f *fakeHub) GetEntityState(ctx context.Context, entityID string) (*hub.EntityState, error) {
	return nil, nil
}

func (f *fakeHub) GetSun(ctx context.Context, entityID string) (*hub.Sun, error) {
	f.ops = append(f.ops, "sun")
	return nil, nil
}

func (f *fakeHub) GetHistoryFirstOccurrence(ctx context.Context, entityID, targetState string) (string, error) {
	return f.history, nil
}

func (f *fakeHub) CompleteTodoItem(ctx context.Context, entityID, itemUID string) error {
	f.ops = append(f.ops, "complete")
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed = append(f.completed, itemUID)
	return nil
}

func (f *fakeHub) TurnOffSwitch(ctx context.Context, entityID string) error {
	f.ops = append(f.ops, "switch_off")
	if f.switchErr != nil {
		return f.switchErr
	}
	f.switched = append(f.switched, entityID)
	return nil
}

var _ HubClient = (*fakeHub)(nil)

// nopConn satisfies net.Conn for probe fakes; only Close is ever called.
type nopConn struct{ net.Conn }

func (nopConn) Close() error { return nil }

// fakeNet controls probe outcomes per "host:port" address.
type fakeNet struct{ up map[string]bool }

func (f *fakeNet) dial(network, addr string, timeout time.Duration) (net.Conn, error) {
	if f.up[addr] {
		return nopConn{}, nil
	}
	return nil, errors.New("connection refused")
}

type recordedEvent struct {
	kind    string
	subject string
	ok      bool
}

type fakeRecorder struct{ events []recordedEvent }

func (r *fakeRecorder) RecordRefresh(domain string, updated bool, err error) {
	r.events = append(r.events, recordedEvent{"refresh", domain, err == nil})
}

func (r *fakeRecorder) RecordEdge(link string, up bool) {
	r.events = append(r.events, recordedEvent{"edge", link, up})
}

func (r *fakeRecorder) RecordAction(kind string, queued bool) {
	r.events = append(r.events, recordedEvent{"action", kind, queued})
}

var _ Recorder = (*fakeRecorder)(nil)

type fakeNotifier struct{ events []notify.Event }

func (n *fakeNotifier) Send(e notify.Event) error {
	n.events = append(n.events, e)
	return nil
}

type testEnv struct {
	engine   *Engine
	hub      *fakeHub
	store    *cache.Store
	net      *fakeNet
	rec      *fakeRecorder
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fh := &fakeHub{}
	fn := &fakeNet{up: map[string]bool{}}
	rec := &fakeRecorder{}
	notifier := &fakeNotifier{}
	store := cache.Open(filepath.Join(t.TempDir(), "cache.json"), false)

	monitor := netcheck.New(netcheck.Config{
		HubHost:       "hub.local",
		HubPort:       8123,
		InternetHost:  "8.8.8.8",
		InternetPort:  53,
		CheckInterval: 30 * time.Second,
		Dialer:        fn.dial,
	})

	sched := scheduler.New(fh, store, scheduler.Config{
		WeatherEntity:    "weather.home",
		TaskLists:        []string{"todo.groceries"},
		Calendars:        []string{"calendar.family"},
		MailboxSensor:    "binary_sensor.mailbox",
		WeatherInterval:  10 * time.Minute,
		ForecastInterval: 10 * time.Minute,
		TasksInterval:    10 * time.Minute,
		CalendarInterval: 10 * time.Minute,
		MailboxInterval:  10 * time.Minute,
		Location:         time.UTC,
	})

	engine := New(Config{
		Hub:           fh,
		Store:         store,
		Monitor:       monitor,
		Scheduler:     sched,
		Recorder:      rec,
		Notifier:      notifier,
		MailboxSwitch: "switch.mail_check",
		TaskLists:     []string{"todo.groceries"},
		Location:      time.UTC,
		Version:       "test",
	})

	return &testEnv{engine: engine, hub: fh, store: store, net: fn, rec: rec, notifier: notifier}
}

func (env *testEnv) setHubUp(up bool)      { env.net.up["hub.local:8123"] = up }
func (env *testEnv) setInternetUp(up bool) { env.net.up["8.8.8.8:53"] = up }

// A date with no federal holiday, so the quote fallback is deterministic.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestTickSkipsFetchesWhileHubDown(t *testing.T) {
	env := newTestEnv(t)
	env.setInternetUp(true)

	env.engine.Tick(context.Background(), testNow)

	if len(env.hub.ops) != 0 {
		t.Errorf("expected no hub calls while down, got %v", env.hub.ops)
	}
}

func TestReconnectReplaysQueueBeforeRefreshing(t *testing.T) {
	env := newTestEnv(t)
	env.setInternetUp(true)
	ctx := context.Background()

	// Establish the hub as down, then enqueue a completion that fails to
	// reach the hub.
	env.engine.Tick(ctx, testNow)
	env.hub.completeErr = errors.New("connection refused")
	applied, err := env.engine.CompleteTask(ctx, "", "uid-1", "Milk")
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("action applied while hub down")
	}
	if got := len(env.engine.QueuedActions()); got != 1 {
		t.Fatalf("queued actions = %d, want 1", got)
	}
	env.hub.ops = nil
	env.hub.completeErr = nil

	// The hub comes back; the next probe interval notices.
	env.setHubUp(true)
	env.engine.Tick(ctx, testNow.Add(30*time.Second))

	if len(env.hub.completed) != 1 || env.hub.completed[0] != "uid-1" {
		t.Fatalf("queued completion not replayed: %v", env.hub.completed)
	}
	if got := len(env.engine.QueuedActions()); got != 0 {
		t.Errorf("queue not drained, %d remaining", got)
	}

	// Replay happens before the forced refresh fetch burst.
	if len(env.hub.ops) == 0 || env.hub.ops[0] != "complete" {
		t.Errorf("ops order = %v, want complete first", env.hub.ops)
	}
	sawFetch := false
	for _, op := range env.hub.ops {
		if op == "weather" {
			sawFetch = true
		}
	}
	if !sawFetch {
		t.Error("reconnect did not force an immediate refresh")
	}
}

func TestReconnectFailedReplayStaysQueued(t *testing.T) {
	env := newTestEnv(t)
	env.setInternetUp(true)
	ctx := context.Background()

	env.engine.Tick(ctx, testNow)
	env.hub.completeErr = errors.New("connection refused")
	if _, err := env.engine.CompleteTask(ctx, "", "uid-1", "Milk"); err != nil {
		t.Fatal(err)
	}

	// Hub reachable again but the service call still errors.
	env.setHubUp(true)
	env.engine.Tick(ctx, testNow.Add(30*time.Second))

	if got := len(env.engine.QueuedActions()); got != 1 {
		t.Errorf("failed replay must keep the action queued, got %d", got)
	}

	// Next reconnect edge retries it.
	env.hub.completeErr = nil
	env.setHubUp(false)
	env.engine.Tick(ctx, testNow.Add(60*time.Second))
	env.setHubUp(true)
	env.engine.Tick(ctx, testNow.Add(90*time.Second))

	if got := len(env.engine.QueuedActions()); got != 0 {
		t.Errorf("retry did not drain the queue, %d remaining", got)
	}
}

func TestCompleteTaskRemovesCachedEntry(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetTasks([]hub.TodoItem{
		{UID: "uid-1", Summary: "Milk"},
		{UID: "uid-2", Summary: "Eggs"},
	})

	if _, err := env.engine.CompleteTask(context.Background(), "", "uid-1", "Milk"); err != nil {
		t.Fatal(err)
	}

	tasks := env.store.Tasks()
	if len(tasks) != 1 || tasks[0].UID != "uid-2" {
		t.Errorf("cached task not removed: %v", tasks)
	}
}

func TestCompleteTaskRequiresEntityWithMultipleLists(t *testing.T) {
	env := newTestEnv(t)
	env.engine.taskLists = []string{"todo.a", "todo.b"}

	if _, err := env.engine.CompleteTask(context.Background(), "", "uid-1", "x"); err == nil {
		t.Error("expected error when entity is ambiguous")
	}
	if _, err := env.engine.CompleteTask(context.Background(), "todo.b", "uid-1", "x"); err != nil {
		t.Errorf("explicit entity rejected: %v", err)
	}
}

func TestAckMailbox(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetMailboxMeta(cache.MailboxMeta{
		OpenedToday: true,
		OpenedTime:  "1:45 PM",
		CheckDate:   testNow.Format("2006-01-02"),
		SwitchOn:    true,
	})
	env.hub.switchErr = errors.New("connection refused")

	applied, err := env.engine.AckMailbox(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Error("ack applied while hub down, expected queued")
	}

	meta := env.store.MailboxMeta()
	if !meta.Cleared || meta.OpenedToday || meta.OpenedTime != "" || meta.SwitchOn {
		t.Errorf("meta not cleared: %+v", meta)
	}

	actions := env.engine.QueuedActions()
	if len(actions) != 1 || actions[0].Kind != cache.ActionAckMailbox {
		t.Fatalf("queued actions = %v", actions)
	}
	if actions[0].Data.EntityID != "switch.mail_check" {
		t.Errorf("ack entity = %q", actions[0].Data.EntityID)
	}
}

func TestAckMailboxWithoutSwitch(t *testing.T) {
	env := newTestEnv(t)
	env.engine.mailboxSwitch = ""

	if _, err := env.engine.AckMailbox(context.Background()); err == nil {
		t.Error("expected error with no mailbox switch configured")
	}
}

func TestStatusLinePriorities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Hub down, nothing queued.
	env.engine.Tick(ctx, testNow)
	if got := env.engine.StatusLine(testNow); got != "Hub offline" {
		t.Errorf("status = %q, want Hub offline", got)
	}

	// Hub down with a queued action mentions the backlog.
	env.hub.completeErr = errors.New("connection refused")
	if _, err := env.engine.CompleteTask(ctx, "", "uid-1", "Milk"); err != nil {
		t.Fatal(err)
	}
	if got := env.engine.StatusLine(testNow); got != "Hub offline. 1 queued" {
		t.Errorf("status = %q", got)
	}

	// Hub up but replay still failing: syncing state.
	env.setHubUp(true)
	env.engine.Tick(ctx, testNow.Add(30*time.Second))
	if got := env.engine.StatusLine(testNow); got != "Syncing 1 queued..." {
		t.Errorf("status = %q", got)
	}

	// Queue drained, internet still down.
	env.hub.completeErr = nil
	env.setHubUp(false)
	env.engine.Tick(ctx, testNow.Add(60*time.Second))
	env.setHubUp(true)
	env.engine.Tick(ctx, testNow.Add(90*time.Second))
	if got := env.engine.StatusLine(testNow); got != "Internet down" {
		t.Errorf("status = %q", got)
	}

	// Everything up, mail waiting.
	env.setInternetUp(true)
	env.engine.Tick(ctx, testNow.Add(120*time.Second))
	env.store.SetMailboxMeta(cache.MailboxMeta{
		OpenedToday: true,
		OpenedTime:  "1:45 PM",
		CheckDate:   testNow.Format("2006-01-02"),
	})
	if got := env.engine.StatusLine(testNow); got != "Mail arrived at 1:45 PM" {
		t.Errorf("status = %q", got)
	}

	// Mail acknowledged: holiday or quote. July 4th is a holiday.
	env.store.SetMailboxMeta(cache.MailboxMeta{Cleared: true, CheckDate: testNow.Format("2006-01-02")})
	fourth := time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)
	if got := env.engine.StatusLine(fourth); got != "Happy Independence Day!" {
		t.Errorf("status = %q", got)
	}

	// Plain day falls through to the daily quote.
	env.store.SetDailyQuote(cache.Quote{Text: "Carpe diem.", Date: testNow.Format("2006-01-02")})
	if got := env.engine.StatusLine(testNow); got != "Carpe diem." {
		t.Errorf("status = %q", got)
	}
}

func TestQuoteStableWithinDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.engine.Tick(ctx, testNow)
	first := env.store.DailyQuote()
	if first.Text == "" || first.Date != "2026-03-10" {
		t.Fatalf("quote not set: %+v", first)
	}

	env.engine.Tick(ctx, testNow.Add(time.Hour))
	if got := env.store.DailyQuote(); got != first {
		t.Errorf("quote changed within the day: %+v", got)
	}

	env.engine.Tick(ctx, testNow.Add(24*time.Hour))
	next := env.store.DailyQuote()
	if next.Date != "2026-03-11" {
		t.Errorf("quote not rotated at midnight: %+v", next)
	}
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.setHubUp(true)
	env.setInternetUp(true)
	ctx := context.Background()

	env.hub.tasks = []hub.TodoItem{{UID: "uid-1", Summary: "Milk"}}
	env.engine.Tick(ctx, testNow)

	snap := env.engine.Snapshot(testNow)
	if !snap.HubOnline || !snap.InternetOnline {
		t.Errorf("connectivity = hub %v internet %v", snap.HubOnline, snap.InternetOnline)
	}
	if snap.Weather == nil || snap.Weather.State != "cloudy" {
		t.Errorf("weather = %+v", snap.Weather)
	}
	if len(snap.Tasks) != 1 {
		t.Errorf("tasks = %v", snap.Tasks)
	}
	if snap.Version != "test" {
		t.Errorf("version = %q", snap.Version)
	}
	if snap.QueuedActions != 0 {
		t.Errorf("queued = %d", snap.QueuedActions)
	}
}

func TestRecorderObservesEdgesAndActions(t *testing.T) {
	env := newTestEnv(t)
	env.setHubUp(true)
	ctx := context.Background()

	env.engine.Tick(ctx, testNow)

	foundEdge := false
	foundRefresh := false
	for _, ev := range env.rec.events {
		if ev.kind == "edge" && ev.subject == "hub" && ev.ok {
			foundEdge = true
		}
		if ev.kind == "refresh" && ev.subject == "weather" {
			foundRefresh = true
		}
	}
	if !foundEdge {
		t.Error("hub up edge not recorded")
	}
	if !foundRefresh {
		t.Error("weather refresh not recorded")
	}

	if _, err := env.engine.CompleteTask(ctx, "", "uid-1", "Milk"); err != nil {
		t.Fatal(err)
	}
	last := env.rec.events[len(env.rec.events)-1]
	if last.kind != "action" || last.subject != cache.ActionCompleteTask || last.ok {
		t.Errorf("action event = %+v (queued flag should be false when applied)", last)
	}
}

func TestNotifierObservesEdgesAndMail(t *testing.T) {
	env := newTestEnv(t)
	env.setHubUp(true)
	env.setInternetUp(true)
	ctx := context.Background()

	env.hub.sensor = &hub.BinarySensor{State: "off", FriendlyName: "Mailbox"}
	env.hub.history = "2026-03-10T13:45:00+00:00"
	env.engine.Tick(ctx, testNow)

	var kinds []notify.Kind
	for _, ev := range env.notifier.events {
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != notify.KindHubOnline || kinds[1] != notify.KindMailArrived {
		t.Fatalf("events = %v, want [hub_online mail_arrived]", kinds)
	}
	if msg := env.notifier.events[1].Message; msg != "mail arrived at 1:45 PM" {
		t.Errorf("mail message = %q", msg)
	}

	// Mail already flagged for today; a second tick must not re-notify.
	env.engine.Tick(ctx, testNow.Add(time.Second))
	if len(env.notifier.events) != 2 {
		t.Errorf("repeat tick sent %d extra events", len(env.notifier.events)-2)
	}

	env.setHubUp(false)
	env.engine.Tick(ctx, testNow.Add(30*time.Second))
	lastEv := env.notifier.events[len(env.notifier.events)-1]
	if lastEv.Kind != notify.KindHubOffline {
		t.Errorf("last event = %s, want hub_offline", lastEv.Kind)
	}
}
