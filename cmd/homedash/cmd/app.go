package cmd

import (
	"fmt"

	"homedash/hub"
	"homedash/internal/cache"
	"homedash/internal/config"
	"homedash/internal/core"
	"homedash/internal/credentials"
	"homedash/internal/netcheck"
	"homedash/internal/notify"
	"homedash/internal/scheduler"
	"homedash/internal/telemetry"
)

// app bundles a fully wired engine with the handles that need closing.
type app struct {
	cfg      *config.Config
	hub      *hub.Client
	store    *cache.Store
	tracker  *telemetry.Tracker
	notifier *notify.Manager
	engine   *core.Engine
}

func loadConfig(cliCfg *Config) (*config.Config, error) {
	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildApp constructs the engine and its collaborators from configuration.
func buildApp(cliCfg *Config) (*app, error) {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return nil, err
	}

	token := credentials.NewManager().Resolve(cfg.Hub.Token)
	if !token.Found {
		return nil, fmt.Errorf("no hub token found: set %s, run 'homedash token set', or add hub.token to the config", credentials.EnvToken)
	}

	hubClient, err := hub.New(hub.Config{
		URL:     cfg.Hub.URL,
		Token:   token.Token,
		Timeout: cfg.GetHubTimeout(),
	})
	if err != nil {
		return nil, err
	}

	cachePath := cfg.Cache.Path
	if cliCfg.CachePath != "" {
		cachePath = cliCfg.CachePath
	}
	store := cache.Open(cachePath, cfg.IsRAMDiskEnabled())

	hubHost, hubPort := hub.HostPort(cfg.Hub.URL)
	monitor := netcheck.New(netcheck.Config{
		HubHost:           hubHost,
		HubPort:           hubPort,
		InternetHost:      cfg.GetInternetHost(),
		InternetPort:      cfg.GetInternetPort(),
		CheckInterval:     cfg.GetCheckInterval(),
		ProbeTimeout:      cfg.GetProbeTimeout(),
		KeepaliveTarget:   cfg.Network.KeepaliveTarget,
		KeepalivePort:     cfg.GetKeepalivePort(),
		KeepaliveInterval: cfg.GetKeepaliveInterval(),
	})

	sched := scheduler.New(hubClient, store, scheduler.Config{
		WeatherEntity:      cfg.Entities.Weather,
		TaskLists:          cfg.Entities.TaskLists,
		Calendars:          cfg.Entities.Calendars,
		MailboxSensor:      cfg.Entities.MailboxSensor,
		MailboxSwitch:      cfg.Entities.MailboxSwitch,
		SunEntity:          cfg.Entities.Sun,
		WeatherInterval:    cfg.GetWeatherInterval(),
		ForecastInterval:   cfg.GetForecastInterval(),
		TasksInterval:      cfg.GetTasksInterval(),
		CalendarInterval:   cfg.GetCalendarInterval(),
		MailboxInterval:    cfg.GetMailboxInterval(),
		CalendarWindowDays: cfg.GetCalendarWindowDays(),
	})

	telemetryPath := cfg.GetTelemetryPath()
	if cliCfg.TelemetryPath != "" {
		telemetryPath = cliCfg.TelemetryPath
	}
	tracker, err := telemetry.NewTracker(telemetryPath, telemetry.IsEnabledFromEnv(cfg.IsTelemetryEnabled()))
	if err != nil {
		_ = hubClient.Close()
		return nil, err
	}

	notifier := notify.NewManager(notify.Config{
		Enabled: cfg.AreNotificationsEnabled(),
		OS: notify.OSConfig{
			Enabled:        cfg.IsOSNotificationEnabled(),
			OnMail:         cfg.NotifyOnMail(),
			OnConnectivity: cfg.NotifyOnConnectivity(),
		},
		Log: notify.LogConfig{
			Enabled: cfg.GetNotificationLogFile() != "",
			Path:    cfg.GetNotificationLogFile(),
		},
	})

	engine := core.New(core.Config{
		Hub:           hubClient,
		Store:         store,
		Monitor:       monitor,
		Scheduler:     sched,
		Recorder:      tracker,
		Notifier:      notifier,
		MailboxSwitch: cfg.Entities.MailboxSwitch,
		TaskLists:     cfg.Entities.TaskLists,
		Version:       Version,
	})

	return &app{
		cfg:      cfg,
		hub:      hubClient,
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		engine:   engine,
	}, nil
}

func (a *app) Close() {
	_ = a.hub.Close()
	_ = a.tracker.Close()
	_ = a.notifier.Close()
}

// socketPath resolves the daemon socket, preferring the CLI override.
func socketPath(cliCfg *Config) (string, error) {
	if cliCfg.SocketPath != "" {
		return cliCfg.SocketPath, nil
	}
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return "", err
	}
	return cfg.GetSocketPath(), nil
}
