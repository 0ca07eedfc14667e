package commands

import (
	"fmt"

	"github.com/wonny/feedwatch/internal/alert"
	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/internal/monitor"
	"github.com/wonny/feedwatch/pkg/config"
	"github.com/wonny/feedwatch/pkg/database"
	"github.com/wonny/feedwatch/pkg/httputil"
	"github.com/wonny/feedwatch/pkg/logger"
)

// deps is the shared wiring behind every command that touches the engine.
type deps struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *database.DB
	registry *feedconfig.Registry
	source   *monitor.SQLSource
	history  *monitor.Repository
	alertLog *alert.LogRepository
	checker  *monitor.Checker
	hub      *alert.Hub
}

// initDeps loads configuration, connects to the metadata store, loads the
// feed registry and assembles the checker. withHub adds the websocket
// broadcast channel; only the API server serves it.
func initDeps(withHub bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if feedsFile != "" {
		cfg.FeedsFile = feedsFile
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	registry, err := feedconfig.NewRegistry(cfg.FeedsFile)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load feeds file: %w", err)
	}

	history := monitor.NewRepository(db.Pool)
	alertLog := alert.NewLogRepository(db.Pool)
	source := monitor.NewSQLSource(db.Pool, log)

	settings := registry.Current().Settings

	var notifiers []contracts.Notifier
	if settings.Alerts.Log.On() {
		notifiers = append(notifiers, alert.NewLogNotifier(log))
	}
	if settings.Alerts.Webhook.Enabled {
		httpClient := httputil.New(log)
		notifiers = append(notifiers, alert.NewWebhookNotifier(httpClient, alertLog, log, settings.Alerts.Webhook))
	}

	var hub *alert.Hub
	if withHub {
		hub = alert.NewHub(log)
		notifiers = append(notifiers, hub)
	}

	checker := monitor.NewChecker(
		registry, history, source,
		alert.NewMulti(notifiers...),
		log, monitor.DefaultCheckerConfig(),
	)

	return &deps{
		cfg:      cfg,
		logger:   log,
		db:       db,
		registry: registry,
		source:   source,
		history:  history,
		alertLog: alertLog,
		checker:  checker,
		hub:      hub,
	}, nil
}

func (d *deps) Close() {
	if d.hub != nil {
		d.hub.Close()
	}
	d.source.Close()
	d.db.Close()
}
