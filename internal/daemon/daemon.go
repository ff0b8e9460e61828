// Package daemon wires configuration, stores, mirrors, the NLU adapter,
// the dispatcher, and the webhook server into one long-running service.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/user/convobridge/internal/config"
	"github.com/user/convobridge/internal/logger"
	"github.com/user/convobridge/pkg/bot"
	"github.com/user/convobridge/pkg/events"
	"github.com/user/convobridge/pkg/messenger"
	"github.com/user/convobridge/pkg/mirror"
	"github.com/user/convobridge/pkg/nlu"
	"github.com/user/convobridge/pkg/session"
	"github.com/user/convobridge/pkg/webhook"
)

// Daemon represents the convobridge service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	sessions      session.Store
	sweeper       *session.Sweeper
	registry      *events.Registry
	nluMirror     *mirror.Client
	webhookMirror *mirror.Client
	adapter       *nlu.Adapter
	sender        *messenger.Client
	bot           *bot.Bot
	records       *webhook.RecordStore
	server        *webhook.Server

	wg        sync.WaitGroup
	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// New creates a daemon from validated configuration.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	zl := log.GetZerolog()

	d := &Daemon{
		config:   cfg,
		logger:   log,
		registry: events.NewRegistry(zl),
	}

	switch cfg.Session.Store {
	case "memory":
		d.sessions = session.NewMemoryStore()
	case "sqlite", "":
		store, err := session.NewSQLiteStore(cfg.Session.DBPath, zl)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		d.sessions = store

		records, err := webhook.NewRecordStore(store.DB(), zl)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to prepare record store: %w", err)
		}
		d.records = records
	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Session.Store)
	}

	ttl := time.Duration(cfg.Session.TTLHours) * time.Hour
	sweeper, err := session.NewSweeper(d.sessions, ttl, cfg.Session.SweepSchedule, zl)
	if err != nil {
		d.sessions.Close()
		return nil, fmt.Errorf("failed to create session sweeper: %w", err)
	}
	d.sweeper = sweeper

	if cfg.Mirror.NLUSyncURL != "" {
		d.nluMirror = mirror.New(cfg.Mirror.NLUSyncURL, cfg.Mirror.MaxInFlight, zl)
	}
	if cfg.Mirror.WebhookSyncURL != "" {
		d.webhookMirror = mirror.New(cfg.Mirror.WebhookSyncURL, cfg.Mirror.MaxInFlight, zl)
	}

	nluClient, err := nlu.NewHTTPClient(nlu.ClientConfig{
		BaseURL:     cfg.NLU.APIURL,
		AccessToken: cfg.NLU.AccessToken,
		Language:    cfg.NLU.Language,
		Logger:      zl,
	})
	if err != nil {
		d.sessions.Close()
		return nil, fmt.Errorf("failed to create NLU client: %w", err)
	}

	timeout := time.Duration(cfg.NLU.TimeoutSeconds) * time.Second
	d.adapter = nlu.NewAdapter(nluClient, d.sessions, d.nluMirror, timeout, zl)

	d.sender, err = messenger.NewClient(messenger.ClientConfig{
		BaseURL:     cfg.Messenger.APIURL,
		AccessToken: cfg.Messenger.AccessToken,
		Logger:      zl,
	})
	if err != nil {
		d.sessions.Close()
		return nil, fmt.Errorf("failed to create messenger client: %w", err)
	}

	d.bot = bot.New(bot.Config{
		StartPhrase:   cfg.Bot.StartPhrase,
		WelcomeEvent:  cfg.Bot.WelcomeEvent,
		FallbackReply: cfg.Bot.FallbackReply,
	}, d.sessions, d.registry, d.adapter, d.sender, zl)

	d.server, err = webhook.NewServer(webhook.ServerOptions{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		BotName:     cfg.Bot.Name,
		VerifyToken: cfg.Server.VerifyToken,
		AppSecret:   cfg.Server.AppSecret,
	}, d.bot, d.webhookMirror, d.records, zl)
	if err != nil {
		d.sessions.Close()
		return nil, fmt.Errorf("failed to create webhook server: %w", err)
	}

	return d, nil
}

// Events returns the event registry. Listeners must be registered before
// Start.
func (d *Daemon) Events() *events.Registry {
	return d.registry
}

// Start launches the sweeper and the webhook server.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.sweeper.Start()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Start(); err != nil {
			d.logger.Error().Err(err).Msg("Webhook server exited")
		}
	}()

	d.logger.Info().
		Str("bot", d.config.Bot.Name).
		Int("port", d.config.Server.Port).
		Msg("Daemon started")

	return nil
}

// Stop shuts everything down in reverse dependency order: no new requests,
// then pending mirror traffic, then the stores.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping daemon")

	if err := d.server.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop webhook server")
	}

	d.sweeper.Stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if d.nluMirror != nil {
		if err := d.nluMirror.Flush(flushCtx); err != nil {
			d.logger.Warn().Err(err).Msg("NLU mirror flush interrupted")
		}
	}
	if d.webhookMirror != nil {
		if err := d.webhookMirror.Flush(flushCtx); err != nil {
			d.logger.Warn().Err(err).Msg("Webhook mirror flush interrupted")
		}
	}

	if err := d.sessions.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close session store")
	}

	d.wg.Wait()
	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Running reports whether the daemon has been started and not yet stopped.
func (d *Daemon) Running() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Uptime returns how long the daemon has been running.
func (d *Daemon) Uptime() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return 0
	}
	return time.Since(d.startTime)
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}
