// Package core ties the connectivity monitor, refresh scheduler, persistent
// cache, and offline action queue into one tick-driven engine.
package core

import (
	"context"
	"fmt"
	"time"

	"homedash/hub"
	"homedash/internal/cache"
	"homedash/internal/holidays"
	"homedash/internal/netcheck"
	"homedash/internal/notify"
	"homedash/internal/queue"
	"homedash/internal/scheduler"
	"homedash/internal/utils"
)

// HubClient is the full hub surface the engine needs: everything the
// scheduler reads plus the write operations replayed from the queue.
type HubClient interface {
	scheduler.HubClient
	CompleteTodoItem(ctx context.Context, entityID, itemUID string) error
	TurnOffSwitch(ctx context.Context, entityID string) error
}

// Recorder observes engine events for telemetry. Implementations must not block.
type Recorder interface {
	RecordRefresh(domain string, updated bool, err error)
	RecordEdge(link string, up bool)
	RecordAction(kind string, queued bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordRefresh(string, bool, error) {}
func (nopRecorder) RecordEdge(string, bool)           {}
func (nopRecorder) RecordAction(string, bool)         {}

type nopNotifier struct{}

func (nopNotifier) Send(notify.Event) error { return nil }

// Config assembles the engine's collaborators.
type Config struct {
	Hub           HubClient
	Store         *cache.Store
	Monitor       *netcheck.Monitor
	Scheduler     *scheduler.Scheduler
	Recorder      Recorder
	Notifier      notify.Sender
	MailboxSwitch string
	TaskLists     []string
	Location      *time.Location
	Version       string
}

// Engine drives one dashboard sync cycle per Tick.
type Engine struct {
	hub      HubClient
	store    *cache.Store
	monitor  *netcheck.Monitor
	sched    *scheduler.Scheduler
	queue    *queue.Queue
	rec      Recorder
	notifier notify.Sender

	mailboxSwitch string
	taskLists     []string
	loc           *time.Location
	version       string
}

// New builds the engine and wires scheduler results into the recorder.
func New(cfg Config) *Engine {
	rec := cfg.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	e := &Engine{
		hub:           cfg.Hub,
		store:         cfg.Store,
		monitor:       cfg.Monitor,
		sched:         cfg.Scheduler,
		queue:         queue.New(cfg.Store),
		rec:           rec,
		notifier:      notifier,
		mailboxSwitch: cfg.MailboxSwitch,
		taskLists:     cfg.TaskLists,
		loc:           loc,
		version:       cfg.Version,
	}
	e.sched.OnResult = func(domain scheduler.Domain, updated bool, err error) {
		rec.RecordRefresh(string(domain), updated, err)
	}
	return e
}

// Tick runs one sync cycle: probe connectivity, replay queued actions on hub
// recovery, then refresh whichever domains are due. On an up-edge the queue
// drains before the forced refresh so the refetched task list already
// reflects the replayed completions. Call it on a steady cadence; each
// subsystem rate-limits itself internally.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.monitor.Keepalive(now)

	hubEdge, netEdge := e.monitor.Tick(now)
	switch hubEdge {
	case netcheck.EdgeUp:
		e.rec.RecordEdge("hub", true)
		_ = e.notifier.Send(notify.Event{Kind: notify.KindHubOnline, Title: "homedash", Message: "hub connection restored", Timestamp: now})
	case netcheck.EdgeDown:
		e.rec.RecordEdge("hub", false)
		_ = e.notifier.Send(notify.Event{Kind: notify.KindHubOffline, Title: "homedash", Message: "hub unreachable, showing cached data", Timestamp: now})
	}
	if netEdge != netcheck.EdgeNone {
		e.rec.RecordEdge("internet", netEdge == netcheck.EdgeUp)
	}

	if hubEdge == netcheck.EdgeUp {
		if n := e.queue.Len(); n > 0 {
			applied, remaining := e.queue.Drain(e.applyAction(ctx))
			utils.Infof("hub back online: replayed %d queued actions, %d remaining", applied, remaining)
		}
		// Stale data accumulated while offline; refresh everything now
		// rather than waiting out each interval.
		e.sched.ForceRefresh()
	}

	openedBefore := e.store.MailboxMeta().OpenedToday
	e.sched.Tick(ctx, now, e.monitor.HubReachable())
	if meta := e.store.MailboxMeta(); meta.OpenedToday && !openedBefore {
		msg := "mail arrived"
		if meta.OpenedTime != "" {
			msg = "mail arrived at " + meta.OpenedTime
		}
		_ = e.notifier.Send(notify.Event{Kind: notify.KindMailArrived, Title: "homedash", Message: msg, Timestamp: now})
	}

	e.rotateQuote(now)
}

// applyAction executes one queued action against the hub.
func (e *Engine) applyAction(ctx context.Context) queue.ApplyFunc {
	return func(a cache.PendingAction) error {
		switch a.Kind {
		case cache.ActionCompleteTask:
			return e.hub.CompleteTodoItem(ctx, a.Data.EntityID, a.Data.ItemUID)
		case cache.ActionAckMailbox:
			return e.hub.TurnOffSwitch(ctx, a.Data.EntityID)
		default:
			return fmt.Errorf("unknown action type %q", a.Kind)
		}
	}
}

// CompleteTask marks a task done. The cached entry is removed immediately so
// the display updates at once; the hub call is queued if it cannot be
// delivered now. Returns true when the hub accepted the action directly.
func (e *Engine) CompleteTask(ctx context.Context, entityID, itemUID, summary string) (bool, error) {
	if entityID == "" {
		if len(e.taskLists) != 1 {
			return false, fmt.Errorf("task list entity required when %d lists are configured", len(e.taskLists))
		}
		entityID = e.taskLists[0]
	}

	e.store.RemoveTask(itemUID)

	action := cache.PendingAction{
		Kind: cache.ActionCompleteTask,
		Data: cache.ActionData{EntityID: entityID, ItemUID: itemUID, Summary: summary},
	}
	applied := e.queue.TryApplyOrQueue(action, e.applyAction(ctx))
	e.rec.RecordAction(cache.ActionCompleteTask, !applied)
	if applied {
		utils.Infof("completed task %q", summary)
	} else {
		utils.Infof("queued completion of task %q for later sync", summary)
	}
	return applied, nil
}

// AckMailbox acknowledges today's mail notification, turning off the check
// switch on the hub (queued when offline).
func (e *Engine) AckMailbox(ctx context.Context) (bool, error) {
	if e.mailboxSwitch == "" {
		return false, fmt.Errorf("no mailbox switch configured")
	}

	meta := e.store.MailboxMeta()
	meta.Cleared = true
	meta.OpenedToday = false
	meta.OpenedTime = ""
	meta.SwitchOn = false
	e.store.SetMailboxMeta(meta)

	action := cache.PendingAction{
		Kind: cache.ActionAckMailbox,
		Data: cache.ActionData{EntityID: e.mailboxSwitch},
	}
	applied := e.queue.TryApplyOrQueue(action, e.applyAction(ctx))
	e.rec.RecordAction(cache.ActionAckMailbox, !applied)
	return applied, nil
}

// ForceRefresh schedules every domain for refresh on the next tick.
func (e *Engine) ForceRefresh() {
	e.sched.ForceRefresh()
}

// QueuedActions returns a copy of the pending action queue.
func (e *Engine) QueuedActions() []cache.PendingAction {
	return e.queue.Actions()
}

// Snapshot is a read-only view of everything the dashboard renders.
type Snapshot struct {
	Weather          *hub.Weather
	Forecast         []hub.ForecastDay
	Tasks            []hub.TodoItem
	CalendarToday    []hub.CalendarEvent
	CalendarUpcoming []hub.CalendarEvent
	Mailbox          *hub.BinarySensor
	MailboxMeta      cache.MailboxMeta
	Sun              *hub.Sun
	HubOnline        bool
	InternetOnline   bool
	QueuedActions    int
	StatusLine       string
	Holiday          string
	Quote            cache.Quote
	Version          string
}

// Snapshot captures the current engine state.
func (e *Engine) Snapshot(now time.Time) Snapshot {
	holiday, _ := holidays.Name(now.In(e.loc))
	return Snapshot{
		Weather:          e.store.Weather(),
		Forecast:         e.store.Forecast(),
		Tasks:            e.store.Tasks(),
		CalendarToday:    e.store.CalendarToday(),
		CalendarUpcoming: e.store.CalendarUpcoming(),
		Mailbox:          e.store.Mailbox(),
		MailboxMeta:      e.store.MailboxMeta(),
		Sun:              e.store.Sun(),
		HubOnline:        e.monitor.HubReachable(),
		InternetOnline:   e.monitor.InternetReachable(),
		QueuedActions:    e.queue.Len(),
		StatusLine:       e.StatusLine(now),
		Holiday:          holiday,
		Quote:            e.store.DailyQuote(),
		Version:          e.version,
	}
}

// StatusLine picks the single most important thing to say right now.
// Connectivity problems outrank sync progress, which outranks mail, which
// outranks the quote of the day.
func (e *Engine) StatusLine(now time.Time) string {
	queued := e.queue.Len()

	if !e.monitor.HubReachable() {
		if queued > 0 {
			return fmt.Sprintf("Hub offline. %d queued", queued)
		}
		return "Hub offline"
	}
	if queued > 0 {
		return fmt.Sprintf("Syncing %d queued...", queued)
	}
	if !e.monitor.InternetReachable() {
		return "Internet down"
	}

	meta := e.store.MailboxMeta()
	if meta.OpenedToday && !meta.Cleared {
		if meta.OpenedTime != "" {
			return fmt.Sprintf("Mail arrived at %s", meta.OpenedTime)
		}
		return "Mail arrived today"
	}

	if name, ok := holidays.Name(now.In(e.loc)); ok {
		return "Happy " + name + "!"
	}
	return e.store.DailyQuote().Text
}

// rotateQuote picks a new daily quote after midnight, keeping the choice
// stable within a day across restarts via the cache.
func (e *Engine) rotateQuote(now time.Time) {
	today := now.In(e.loc).Format("2006-01-02")
	if e.store.DailyQuote().Date == today {
		return
	}
	e.store.SetDailyQuote(cache.Quote{
		Text: quoteForDay(now.In(e.loc)),
		Date: today,
	})
}
