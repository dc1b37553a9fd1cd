// Package app assembles the engine and owns its run loop.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"traderelay/internal/analyzer"
	"traderelay/internal/calc"
	"traderelay/internal/config"
	"traderelay/internal/config/loader"
	"traderelay/internal/decision"
	"traderelay/internal/dispatch"
	"traderelay/internal/execution"
	"traderelay/internal/journal"
	"traderelay/internal/logger"
	"traderelay/internal/notifier"
	"traderelay/internal/registry"
	"traderelay/internal/scheduler"
	"traderelay/internal/supervisor"
	"traderelay/internal/tpassign"
	adminhttp "traderelay/internal/transport/http"
	"traderelay/internal/types"
	"traderelay/internal/venue"
	"traderelay/internal/venue/binance"
	"traderelay/internal/venue/bridge"
)

// App is the assembled engine.
type App struct {
	cfg   *config.Config
	venue venue.Venue
	calcs *calcProvider

	reg      *registry.Registry
	dedup    *registry.Deduper
	cooldown *registry.Cooldown
	confirms *registry.Confirmations

	analyzer analyzer.Client
	notifier notifier.Notifier
	journal  *journal.Store
	sup      *supervisor.Supervisor
	sched    *scheduler.Scheduler
	admin    *adminhttp.Server

	// Hot-swappable on config reload.
	mu         sync.RWMutex
	engine     *decision.Engine
	strategy   execution.Strategy
	executor   *execution.Executor
	dispatcher *dispatch.Dispatcher
	ingest     config.IngestConfig
}

// New builds the engine from configuration.
func New(cfg *config.Config) (*App, error) {
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("app: open log file: %w", err)
		}
		logger.SetOutput(os.Stdout, f)
	}

	var vn venue.Venue
	switch cfg.Venue.Driver {
	case "bridge":
		vn = bridge.New(cfg.Venue.Bridge)
	case "binance":
		vn = binance.New(cfg.Venue.Binance)
	default:
		return nil, fmt.Errorf("app: unknown venue driver %q", cfg.Venue.Driver)
	}

	book, err := loader.Open(cfg.Symbols.SpecsFile)
	if err != nil {
		return nil, err
	}
	calcs := &calcProvider{venue: vn, book: book, cache: make(map[string]*calc.Calculator)}
	if err := book.Watch(calcs.invalidate); err != nil {
		return nil, err
	}

	jrnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}

	var ntf notifier.Notifier = notifier.Noop{}
	if cfg.Telegram.Enabled {
		ntf = notifier.NewTelegram(cfg.Telegram)
	}

	retry := venue.RetryPolicy{Attempts: cfg.Venue.Retry.Attempts, Delay: cfg.Venue.Retry.Delay}
	reg := registry.New()

	a := &App{
		cfg:      cfg,
		venue:    vn,
		calcs:    calcs,
		reg:      reg,
		dedup:    registry.NewDeduper(cfg.Ingest.DedupCapacity),
		cooldown: registry.NewCooldown(cfg.Ingest.MarketCooldown),
		confirms: registry.NewConfirmations(cfg.Ingest.ConfirmTTL),
		analyzer: analyzer.NewHTTPClient(cfg.Analyzer),
		notifier: ntf,
		journal:  jrnl,
		sched:    scheduler.New(),
	}
	if err := a.applyTunables(cfg, retry); err != nil {
		return nil, err
	}

	a.sup = supervisor.New(cfg.Supervisor, vn, reg, calcs, ntf, jrnl, retry)

	if cfg.Admin.Enabled {
		a.admin = adminhttp.New(cfg.Admin.Listen, reg, a.dispatcher, a, jrnl)
	}

	a.sched.Every("confirmation-prune", cfg.Ingest.ConfirmTTL, a.pruneConfirmations)
	if cfg.Summary.Enabled {
		a.sched.DailyAt("daily-summary", cfg.Summary.Hour, cfg.Summary.Minute, cfg.Summary.SkipWeekends, a.sendDailySummary)
	}
	return a, nil
}

// applyTunables builds the components that follow configuration reloads.
func (a *App) applyTunables(cfg *config.Config, retry venue.RetryPolicy) error {
	policy, err := tpassign.New(tpassign.Mode(cfg.TPAssign.Mode), cfg.TPAssign.Mapping)
	if err != nil {
		return err
	}
	strategy, err := execution.Select(cfg.Execution, policy)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.engine = decision.New(cfg.Decision)
	a.strategy = strategy
	a.executor = execution.NewExecutor(a.venue, a.reg, retry)
	a.dispatcher = dispatch.New(cfg.Dispatch, a.reg, a.venue, a.calcs, retry, a.notifier, a.journal)
	a.ingest = cfg.Ingest
	return nil
}

// Reload applies a new configuration to the hot-swappable components. Venue,
// journal and admin wiring stay as booted; those need a restart.
func (a *App) Reload(cfg *config.Config) {
	logger.SetLevel(cfg.LogLevel)
	retry := venue.RetryPolicy{Attempts: cfg.Venue.Retry.Attempts, Delay: cfg.Venue.Retry.Delay}
	if err := a.applyTunables(cfg, retry); err != nil {
		logger.Errorf("config reload not applied: %v", err)
	}
}

// adoptVenuePositions registers open positions the venue already holds that
// the engine does not track, so a restart does not orphan live trades. The
// adopted trades carry no ladder; protective passes still apply.
func (a *App) adoptVenuePositions(ctx context.Context) error {
	positions, err := a.venue.OpenPositions(ctx)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if pos.Ticket == 0 {
			logger.Warnf("venue position on %s has no ticket, skipping", pos.Symbol)
			continue
		}
		if _, err := a.reg.Get(pos.Ticket); err == nil {
			continue
		}
		a.reg.Add(&types.Trade{
			Ticket:          pos.Ticket,
			Symbol:          pos.Symbol,
			Side:            pos.Side,
			Kind:            types.OrderMarket,
			Status:          types.StatusOpen,
			EntryPrice:      pos.EntryPrice,
			OpenedVolume:    pos.Volume,
			RemainingVolume: pos.Volume,
			StopLoss:        pos.StopLoss,
			TakeProfit:      pos.TakeProfit,
			AutoStopPending: pos.StopLoss == 0,
			OpenedAt:        time.Now(),
		})
		logger.Infof("adopted venue position %d: %s %s vol=%v", pos.Ticket, pos.Side, pos.Symbol, pos.Volume)
	}
	return nil
}

// Run starts the supervisor, scheduler and admin server and blocks until
// ctx is done. Positions already open at the venue are adopted first; a
// venue that is down at boot is not fatal, the supervisor picks the
// positions up once reachable.
func (a *App) Run(ctx context.Context) error {
	if err := a.adoptVenuePositions(ctx); err != nil {
		logger.Warnf("adopt venue positions: %v", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(a.sup.Run(gctx)) })
	if a.admin != nil {
		g.Go(func() error { return a.admin.Run(gctx) })
	}
	a.sched.Start(gctx)
	err := g.Wait()
	a.sched.Wait()
	return err
}

func ignoreCancel(err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return nil
	}
	return err
}

func (a *App) pruneConfirmations(ctx context.Context) {
	for _, conf := range a.confirms.Prune() {
		logger.Infof("confirmation %s for %s expired", conf.ID, conf.Signal.Symbol)
		if err := a.notifier.Send(ctx, fmt.Sprintf("Confirmation for %s %s expired unanswered",
			conf.Signal.Side, conf.Signal.Symbol)); err != nil {
			logger.Warnf("notify: %v", err)
		}
	}
}

func (a *App) sendDailySummary(ctx context.Context) {
	sum, err := a.journal.Summarize(ctx, startOfDay(), endOfDay())
	if err != nil {
		logger.Warnf("daily summary: %v", err)
		return
	}
	if err := a.notifier.Send(ctx, sum.String()); err != nil {
		logger.Warnf("notify: %v", err)
	}
}
