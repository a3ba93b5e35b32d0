// Package app wires the attendance service runtime: the webhook HTTP
// server, the session lifecycle sweeper, and the daily aggregation timer.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"github.com/mhliao/crewlog/internal/api/webhook"
	"github.com/mhliao/crewlog/internal/attendance/aggregate"
	"github.com/mhliao/crewlog/internal/attendance/authz"
	"github.com/mhliao/crewlog/internal/attendance/dedup"
	"github.com/mhliao/crewlog/internal/attendance/domain"
	"github.com/mhliao/crewlog/internal/attendance/service"
	"github.com/mhliao/crewlog/internal/attendance/store"
	"github.com/mhliao/crewlog/internal/ledger"
	ledgersqlite "github.com/mhliao/crewlog/internal/ledger/sqlite"
	"github.com/mhliao/crewlog/internal/messaging"
)

const shutdownTimeout = 5 * time.Second

// App is the assembled attendance service.
type App struct {
	cfg        Config
	db         *ledgersqlite.Store
	sessions   *store.Store
	dedup      *dedup.Cache
	aggregator *aggregate.Aggregator
	handler    *webhook.Handler
	now        func() time.Time
}

// New builds the service from configuration. The caller owns the returned
// App and must Close it.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := ledgersqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	attendance := db.Sheet(cfg.AttendanceSheet, ledger.AttendanceHeaders)
	summary := db.Sheet(cfg.SummarySheet, ledger.SummaryHeaders)

	policy, err := authz.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load role policy: %w", err)
	}

	dedupCache := dedup.New(cfg.DedupWindow)
	sessions := store.New(store.Config{
		Capacity:  cfg.SessionCapacity,
		Retention: cfg.retention(),
	})
	dispatcher := service.New(policy, dedupCache, sessions, attendance, nil)

	tokens, err := tokenSource(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	replier, err := messaging.NewClient(cfg.MessagingEndpoint, tokens, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("messaging client: %w", err)
	}

	handler, err := webhook.NewHandler(cfg.ChannelSecret, dispatcher, replier)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("webhook handler: %w", err)
	}

	return &App{
		cfg:        cfg,
		db:         db,
		sessions:   sessions,
		dedup:      dedupCache,
		aggregator: aggregate.New(attendance, summary, nil),
		handler:    handler,
		now:        time.Now,
	}, nil
}

func tokenSource(cfg Config) (messaging.TokenSource, error) {
	if cfg.useAssertion() {
		source, err := messaging.NewAssertionTokenSource(cfg.MessagingEndpoint, cfg.ChannelID, cfg.AssertionKeyID, []byte(cfg.AssertionKeyPEM), nil)
		if err != nil {
			return nil, fmt.Errorf("assertion token source: %w", err)
		}
		return source, nil
	}
	return messaging.StaticTokenSource(cfg.ChannelToken), nil
}

// Close releases the ledger database.
func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Run serves the webhook and background loops until the context ends.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	a.handler.RegisterRoutes(mux)

	listener, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr, err)
	}
	listener = netutil.LimitListener(listener, a.cfg.MaxConns)

	server := &http.Server{Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	go a.sweepLoop(ctx)
	go a.aggregateLoop(ctx)

	log.Printf("server listening at %v", listener.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

// sweepLoop prunes expired sessions and dedup entries on a fixed interval.
// A single goroutine runs the sweeps, so they never overlap; a sweep that
// outlasts the interval simply delays the next one.
func (a *App) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := a.sessions.Sweep()
			a.dedup.Purge()
			if removed > 0 {
				log.Printf("sweep: removed %d expired sessions", removed)
			}
		}
	}
}

// aggregateLoop writes the daily summary once per day at the configured hour.
func (a *App) aggregateLoop(ctx context.Context) {
	for {
		now := a.now().In(domain.Timezone)
		timer := time.NewTimer(nextDailyRun(now, a.cfg.AggregateHour).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			forDate := domain.FormatEraDate(a.now().In(domain.Timezone))
			rows, err := a.aggregator.Run(ctx, forDate)
			if err != nil {
				log.Printf("aggregate %s: %v", forDate, err)
				continue
			}
			log.Printf("aggregate %s: wrote %d summary rows", forDate, rows)
		}
	}
}

// nextDailyRun returns the next occurrence of hour:00 strictly after now,
// in now's location.
func nextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
