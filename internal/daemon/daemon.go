package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tally-app/tally/internal/api"
	"github.com/tally-app/tally/internal/app/engagement"
	"github.com/tally-app/tally/internal/app/ledger"
	"github.com/tally-app/tally/internal/app/limits"
	"github.com/tally-app/tally/internal/domain"
	"github.com/tally-app/tally/internal/health"
	_ "github.com/tally-app/tally/internal/infra/metrics" // Register Prometheus metrics
	"github.com/tally-app/tally/internal/infra/sqlite"
)

// Daemon is the core Tally runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Clock  domain.Clock
	Server *api.Server
	cancel context.CancelFunc

	Ledger      *ledger.Service
	Limits      *limits.Service
	Streak      *engagement.StreakService
	Pet         *engagement.PetService
	Achievement *engagement.AchievementService
	Health      *health.Checker

	cron *cron.Cron
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(tallyHome())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	clock := domain.SystemClock{}

	led, err := ledger.NewService(db, clock, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}

	pet := engagement.NewPetService(db, clock)
	streak := engagement.NewStreakService(db, pet)
	led.SetDayCloser(streak)

	lim := limits.NewService(db, clock, led, led, streak)
	ach := engagement.NewAchievementService(db, clock, led, streak, pet)

	d := &Daemon{
		Config:      cfg,
		DB:          db,
		Clock:       clock,
		Ledger:      led,
		Limits:      lim,
		Streak:      streak,
		Pet:         pet,
		Achievement: ach,
		Health:      health.NewChecker(db, tallyHome()),
	}

	srv := api.NewServer(led, lim, streak, pet, ach, db, clock)
	srv.SetHealth(d.Health)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	d.Server = srv

	return d, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker
	go d.Health.Run(ctx)

	// Midnight maintenance: boundary normalization runs on every ledger
	// access anyway, but the cron tick closes days even when no
	// collaborator touches the ledger overnight, and retries any
	// pending durable write.
	d.cron = cron.New()
	if _, err := d.cron.AddFunc(d.Config.Maintenance.Schedule, func() {
		if err := d.Ledger.Normalize(); err != nil {
			log.Printf("[daemon] maintenance normalize: %v", err)
		}
		if err := d.Ledger.Flush(); err != nil {
			log.Printf("[daemon] maintenance flush: %v", err)
		}
		if _, err := d.Achievement.CheckAndUnlock(); err != nil {
			log.Printf("[daemon] maintenance achievements: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("maintenance schedule %q: %w", d.Config.Maintenance.Schedule, err)
	}
	d.cron.Start()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if d.cron != nil {
			<-d.cron.Stop().Done()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("Tally serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.cron != nil {
		d.cron.Stop()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
