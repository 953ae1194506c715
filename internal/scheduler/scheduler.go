// Package scheduler owns one independent refresh timer per data domain and
// commits successful fetches to the persistent cache. A fetch attempt always
// advances its timer, success or not, so a failing domain never retries
// faster than its configured interval.
package scheduler

import (
	"context"
	"sort"
	"strings"
	"time"

	"homedash/hub"
	"homedash/internal/cache"
	"homedash/internal/utils"
)

// Domain identifies one category of synced data.
type Domain string

const (
	DomainWeather  Domain = "weather"
	DomainForecast Domain = "forecast"
	DomainTasks    Domain = "tasks"
	DomainCalendar Domain = "calendar"
	DomainMailbox  Domain = "mailbox"
	DomainSun      Domain = "sun"
)

// SunInterval is the fixed sun refresh cadence. The sun entity is cheap to
// read and changes slowly, so it is not user-tunable.
const SunInterval = 300 * time.Second

// DefaultCalendarWindowDays is how far ahead calendar events are requested.
const DefaultCalendarWindowDays = 7

// upcomingEventLimit caps the upcoming bucket, matching what the display can show.
const upcomingEventLimit = 7

// HubClient is the subset of hub operations the scheduler drives.
type HubClient interface {
	GetWeather(ctx context.Context, entityID string) (*hub.Weather, error)
	GetForecast(ctx context.Context, entityID string) ([]hub.ForecastDay, error)
	GetTodoItems(ctx context.Context, entityID string) ([]hub.TodoItem, error)
	GetCalendarEvents(ctx context.Context, entityID string, windowDays int) ([]hub.CalendarEvent, error)
	GetBinarySensor(ctx context.Context, entityID string) (*hub.BinarySensor, error)
	GetEntityState(ctx context.Context, entityID string) (*hub.EntityState, error)
	GetSun(ctx context.Context, entityID string) (*hub.Sun, error)
	GetHistoryFirstOccurrence(ctx context.Context, entityID, targetState string) (string, error)
}

// Config holds entity assignments and per-domain refresh intervals.
type Config struct {
	WeatherEntity string
	TaskLists     []string
	Calendars     []string
	MailboxSensor string
	MailboxSwitch string
	SunEntity     string

	WeatherInterval  time.Duration
	ForecastInterval time.Duration
	TasksInterval    time.Duration
	CalendarInterval time.Duration
	MailboxInterval  time.Duration

	CalendarWindowDays int

	// Location sets the day boundary for calendar bucketing and mailbox
	// day rollover. Defaults to the system local zone.
	Location *time.Location
}

// timer tracks when one domain last attempted a refresh. The zero lastRun
// guarantees the first tick fires.
type timer struct {
	domain   Domain
	interval time.Duration
	lastRun  time.Time
	refresh  func(ctx context.Context, now time.Time) (bool, error)
}

// Scheduler drives the per-domain refresh cycle.
type Scheduler struct {
	hub    HubClient
	store  *cache.Store
	cfg    Config
	timers []*timer

	// OnResult, when set, observes every refresh attempt. updated reports
	// whether the cache was overwritten.
	OnResult func(domain Domain, updated bool, err error)
}

// New creates a scheduler over the hub client and cache store.
func New(hc HubClient, store *cache.Store, cfg Config) *Scheduler {
	if cfg.SunEntity == "" {
		cfg.SunEntity = "sun.sun"
	}
	if cfg.CalendarWindowDays <= 0 {
		cfg.CalendarWindowDays = DefaultCalendarWindowDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	s := &Scheduler{hub: hc, store: store, cfg: cfg}
	s.timers = []*timer{
		{domain: DomainWeather, interval: cfg.WeatherInterval, refresh: s.refreshWeather},
		{domain: DomainForecast, interval: cfg.ForecastInterval, refresh: s.refreshForecast},
		{domain: DomainTasks, interval: cfg.TasksInterval, refresh: s.refreshTasks},
		{domain: DomainCalendar, interval: cfg.CalendarInterval, refresh: s.refreshCalendar},
		{domain: DomainMailbox, interval: cfg.MailboxInterval, refresh: s.refreshMailbox},
		{domain: DomainSun, interval: SunInterval, refresh: s.refreshSun},
	}
	return s
}

// Tick refreshes every domain whose interval has elapsed. When the hub is
// unreachable no fetches happen at all; cached data keeps displaying.
func (s *Scheduler) Tick(ctx context.Context, now time.Time, hubReachable bool) {
	if !hubReachable {
		return
	}

	for _, t := range s.timers {
		if now.Sub(t.lastRun) < t.interval {
			continue
		}
		updated, err := t.refresh(ctx, now)
		t.lastRun = now
		if err != nil {
			utils.Warnf("%s refresh failed: %v", t.domain, err)
		}
		if s.OnResult != nil {
			s.OnResult(t.domain, updated, err)
		}
	}
}

// ForceRefresh zeroes every timer so the next tick refreshes all domains,
// used when the hub transitions back to reachable.
func (s *Scheduler) ForceRefresh() {
	for _, t := range s.timers {
		t.lastRun = time.Time{}
	}
}

func (s *Scheduler) refreshWeather(ctx context.Context, _ time.Time) (bool, error) {
	if s.cfg.WeatherEntity == "" {
		return false, nil
	}
	w, err := s.hub.GetWeather(ctx, s.cfg.WeatherEntity)
	if err != nil {
		return false, err
	}
	if w == nil {
		// Entity missing on the hub; keep showing the cached value.
		return false, nil
	}
	s.store.SetWeather(w)
	utils.Infof("weather updated: %s", w.State)
	return true, nil
}

func (s *Scheduler) refreshForecast(ctx context.Context, _ time.Time) (bool, error) {
	if s.cfg.WeatherEntity == "" {
		return false, nil
	}
	days, err := s.hub.GetForecast(ctx, s.cfg.WeatherEntity)
	if err != nil {
		return false, err
	}
	if len(days) == 0 {
		// An empty forecast on a successful call is a hub glitch more
		// often than a real absence; keep the previous one.
		return false, nil
	}
	s.store.SetForecast(days)
	utils.Infof("forecast updated: %d days", len(days))
	return true, nil
}

func (s *Scheduler) refreshTasks(ctx context.Context, _ time.Time) (bool, error) {
	if len(s.cfg.TaskLists) == 0 {
		return false, nil
	}

	var items []hub.TodoItem
	var firstErr error
	failures := 0
	for _, entity := range s.cfg.TaskLists {
		listItems, err := s.hub.GetTodoItems(ctx, entity)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			utils.Warnf("task list %s fetch failed: %v", entity, err)
			continue
		}
		items = append(items, listItems...)
	}
	if failures == len(s.cfg.TaskLists) {
		return false, firstErr
	}

	// An empty successful result does not clear a non-empty cache: a
	// single glitchy response must not make every task vanish from the
	// display. A genuinely cleared list converges once the cache empties
	// through task completions.
	if len(items) == 0 && len(s.store.Tasks()) > 0 {
		return false, nil
	}
	s.store.SetTasks(items)
	utils.Infof("tasks updated: %d items", len(items))
	return true, nil
}

func (s *Scheduler) refreshCalendar(ctx context.Context, now time.Time) (bool, error) {
	if len(s.cfg.Calendars) == 0 {
		return false, nil
	}

	var events []hub.CalendarEvent
	var firstErr error
	failures := 0
	for _, entity := range s.cfg.Calendars {
		calEvents, err := s.hub.GetCalendarEvents(ctx, entity, s.cfg.CalendarWindowDays)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			utils.Warnf("calendar %s fetch failed: %v", entity, err)
			continue
		}
		events = append(events, calEvents...)
	}
	if failures == len(s.cfg.Calendars) {
		return false, firstErr
	}

	today, upcoming := PartitionEvents(events, now.In(s.cfg.Location))

	// Emptiness is informative for calendars: a day without events is a
	// legitimate state, so the cache is always overwritten.
	s.store.SetCalendar(today, upcoming)
	utils.Infof("calendar updated: %d today, %d upcoming", len(today), len(upcoming))
	return true, nil
}

// PartitionEvents sorts events by start ascending (stable, so fetch order
// breaks ties) and splits them into today and upcoming buckets using the
// local calendar date. Past events are dropped; upcoming is capped.
func PartitionEvents(events []hub.CalendarEvent, now time.Time) (today, upcoming []hub.CalendarEvent) {
	sorted := make([]hub.CalendarEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	todayStr := now.Format("2006-01-02")
	for _, event := range sorted {
		date := eventDate(event.Start)
		switch {
		case date == todayStr:
			today = append(today, event)
		case date > todayStr:
			upcoming = append(upcoming, event)
		}
	}
	if len(upcoming) > upcomingEventLimit {
		upcoming = upcoming[:upcomingEventLimit]
	}
	return today, upcoming
}

// eventDate extracts the calendar date from an ISO8601 or date-only start.
func eventDate(start string) string {
	if len(start) >= 10 {
		return start[:10]
	}
	return start
}

func (s *Scheduler) refreshMailbox(ctx context.Context, now time.Time) (bool, error) {
	if s.cfg.MailboxSensor == "" {
		return false, nil
	}
	sensor, err := s.hub.GetBinarySensor(ctx, s.cfg.MailboxSensor)
	if err != nil {
		return false, err
	}
	if sensor == nil {
		return false, nil
	}
	s.store.SetMailbox(sensor)
	s.updateMailboxMeta(ctx, now)
	return true, nil
}

// updateMailboxMeta tracks whether the mailbox was opened today, resetting on
// day rollover and clearing when the user acknowledges via the check switch.
func (s *Scheduler) updateMailboxMeta(ctx context.Context, now time.Time) {
	meta := s.store.MailboxMeta()
	today := now.In(s.cfg.Location).Format("2006-01-02")

	if meta.CheckDate != today {
		meta = cache.MailboxMeta{CheckDate: today}
		s.store.SetMailboxMeta(meta)
	}

	if s.cfg.MailboxSwitch != "" {
		if state, err := s.hub.GetEntityState(ctx, s.cfg.MailboxSwitch); err == nil && state != nil {
			meta.SwitchOn = state.State == "on"
		}
	}

	// Once the user has acknowledged today there is nothing left to track.
	if meta.Cleared {
		s.store.SetMailboxMeta(meta)
		return
	}

	// Switch off while a notification is showing means the user checked
	// the mail; clear the notification for the rest of the day.
	if s.cfg.MailboxSwitch != "" && meta.OpenedToday && !meta.SwitchOn {
		utils.Infof("mailbox switch off, user acknowledged")
		meta.Cleared = true
		meta.OpenedToday = false
		meta.OpenedTime = ""
		s.store.SetMailboxMeta(meta)
		return
	}

	if meta.OpenedToday {
		s.store.SetMailboxMeta(meta)
		return
	}

	first, err := s.hub.GetHistoryFirstOccurrence(ctx, s.cfg.MailboxSensor, "on")
	if err != nil {
		utils.Debugf("mailbox history check failed: %v", err)
		s.store.SetMailboxMeta(meta)
		return
	}
	if first != "" {
		if opened, perr := parseTimestamp(first); perr == nil {
			meta.OpenedToday = true
			meta.OpenedTime = opened.In(s.cfg.Location).Format("3:04 PM")
			utils.Infof("mailbox was opened today at %s", meta.OpenedTime)
		}
	}
	s.store.SetMailboxMeta(meta)
}

func (s *Scheduler) refreshSun(ctx context.Context, _ time.Time) (bool, error) {
	sun, err := s.hub.GetSun(ctx, s.cfg.SunEntity)
	if err != nil {
		return false, err
	}
	if sun == nil {
		return false, nil
	}
	s.store.SetSun(sun)
	return true, nil
}

// parseTimestamp handles the hub's RFC3339 timestamps with or without
// fractional seconds.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
