// Package cache provides the persistent last-known-good store for all display
// data domains. The whole document is flushed to disk on every write so the
// display survives restarts without blanking; a corrupt or missing file falls
// back to empty defaults and is repaired by the next successful write.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"homedash/hub"
	"homedash/internal/utils"
)

const (
	// DefaultRAMDiskPath is the preferred cache location. /run is tmpfs on
	// the target devices, which keeps SD card writes to a minimum.
	DefaultRAMDiskPath = "/run/homedash/cache.json"

	// FallbackPath is used when the RAM disk directory cannot be created.
	FallbackPath = "/tmp/homedash_cache.json"
)

// MailboxMeta tracks whether the mailbox was opened today. Its sub-fields are
// updated independently of each other, unlike the whole-value domains.
type MailboxMeta struct {
	OpenedToday bool   `json:"opened_today"`
	OpenedTime  string `json:"opened_time,omitempty"`
	Cleared     bool   `json:"cleared"`
	CheckDate   string `json:"check_date,omitempty"`
	SwitchOn    bool   `json:"switch_on"`
}

// PendingAction is one queued offline mutation, replayed when the hub comes
// back. The queue is persisted inside the cache document so it round-trips
// across restarts in order.
type PendingAction struct {
	ID         string     `json:"id"`
	Kind       string     `json:"type"`
	Data       ActionData `json:"data"`
	EnqueuedAt int64      `json:"timestamp"`
}

// Action kinds.
const (
	ActionCompleteTask = "complete_task"
	ActionAckMailbox   = "ack_mailbox"
)

// ActionData carries the fields needed to replay a mutation.
type ActionData struct {
	EntityID string `json:"entity_id"`
	ItemUID  string `json:"task_uid,omitempty"`
	Summary  string `json:"task_summary,omitempty"`
}

// Quote is the daily quote with the local date it was picked on.
type Quote struct {
	Text string `json:"text,omitempty"`
	Date string `json:"date,omitempty"`
}

// document is the single persisted JSON document, one field per data domain.
type document struct {
	Weather          *hub.Weather        `json:"weather,omitempty"`
	Forecast         []hub.ForecastDay   `json:"forecast"`
	Tasks            []hub.TodoItem      `json:"tasks"`
	CalendarToday    []hub.CalendarEvent `json:"calendar_today"`
	CalendarUpcoming []hub.CalendarEvent `json:"calendar_upcoming"`
	Mailbox          *hub.BinarySensor   `json:"mailbox,omitempty"`
	MailboxMeta      MailboxMeta         `json:"mailbox_meta"`
	Sun              *hub.Sun            `json:"sun,omitempty"`
	PendingActions   []PendingAction     `json:"pending_actions"`
	DailyQuote       Quote               `json:"daily_quote"`
}

func defaults() document {
	return document{
		Forecast:         []hub.ForecastDay{},
		Tasks:            []hub.TodoItem{},
		CalendarToday:    []hub.CalendarEvent{},
		CalendarUpcoming: []hub.CalendarEvent{},
		PendingActions:   []PendingAction{},
	}
}

// Store is the persistent data cache. Safe for concurrent use; the scheduler
// is the single writer per domain, readers are the presentation surfaces.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  document
}

// Open initializes a store at the given path. An empty path selects the RAM
// disk location when useRAMDisk is true, /tmp otherwise; a RAM disk directory
// that cannot be created falls back to /tmp. Read failures seed defaults and
// never propagate to the caller.
func Open(path string, useRAMDisk bool) *Store {
	if path == "" {
		if useRAMDisk {
			path = DefaultRAMDiskPath
		} else {
			path = FallbackPath
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			utils.Warnf("cannot create cache dir %s, falling back to %s: %v", dir, FallbackPath, err)
			path = FallbackPath
		}
	}

	s := &Store{path: path, doc: defaults()}
	s.load()
	utils.Infof("cache initialized at %s", path)
	return s
}

// load reads the snapshot from disk, tolerating a missing or corrupt file.
// The on-disk file is left in place; the next write repairs it.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			utils.Warnf("could not load cache: %v", err)
		}
		return
	}

	doc := defaults()
	if err := json.Unmarshal(data, &doc); err != nil {
		utils.Warnf("could not parse cache, using defaults: %v", err)
		return
	}
	s.doc = doc
}

// save persists the whole document. Failures are logged and otherwise
// ignored; the in-memory value stays authoritative for this process.
func (s *Store) save() {
	data, err := json.Marshal(s.doc)
	if err != nil {
		utils.Warnf("could not encode cache: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		utils.Warnf("could not save cache: %v", err)
	}
}

// Path returns the location of the on-disk snapshot.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Weather() *hub.Weather {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Weather
}

func (s *Store) SetWeather(w *hub.Weather) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Weather = w
	s.save()
}

func (s *Store) Forecast() []hub.ForecastDay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Forecast
}

func (s *Store) SetForecast(f []hub.ForecastDay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Forecast = f
	s.save()
}

func (s *Store) Tasks() []hub.TodoItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hub.TodoItem, len(s.doc.Tasks))
	copy(out, s.doc.Tasks)
	return out
}

func (s *Store) SetTasks(items []hub.TodoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []hub.TodoItem{}
	}
	s.doc.Tasks = items
	s.save()
}

// RemoveTask drops one task from the cached list by UID, for immediate UI
// feedback before the hub confirms the completion.
func (s *Store) RemoveTask(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]hub.TodoItem, 0, len(s.doc.Tasks))
	for _, t := range s.doc.Tasks {
		if t.UID != uid {
			kept = append(kept, t)
		}
	}
	s.doc.Tasks = kept
	s.save()
}

func (s *Store) CalendarToday() []hub.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.CalendarToday
}

func (s *Store) CalendarUpcoming() []hub.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.CalendarUpcoming
}

func (s *Store) SetCalendar(today, upcoming []hub.CalendarEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if today == nil {
		today = []hub.CalendarEvent{}
	}
	if upcoming == nil {
		upcoming = []hub.CalendarEvent{}
	}
	s.doc.CalendarToday = today
	s.doc.CalendarUpcoming = upcoming
	s.save()
}

func (s *Store) Mailbox() *hub.BinarySensor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Mailbox
}

func (s *Store) SetMailbox(b *hub.BinarySensor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Mailbox = b
	s.save()
}

func (s *Store) MailboxMeta() MailboxMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.MailboxMeta
}

func (s *Store) SetMailboxMeta(m MailboxMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.MailboxMeta = m
	s.save()
}

func (s *Store) Sun() *hub.Sun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Sun
}

func (s *Store) SetSun(sun *hub.Sun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Sun = sun
	s.save()
}

func (s *Store) PendingActions() []PendingAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PendingAction, len(s.doc.PendingActions))
	copy(out, s.doc.PendingActions)
	return out
}

func (s *Store) SetPendingActions(actions []PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if actions == nil {
		actions = []PendingAction{}
	}
	s.doc.PendingActions = actions
	s.save()
}

func (s *Store) DailyQuote() Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.DailyQuote
}

func (s *Store) SetDailyQuote(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.DailyQuote = q
	s.save()
}
