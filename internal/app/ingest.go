package app

import (
	"context"
	"errors"
	"fmt"

	"traderelay/internal/analyzer"
	"traderelay/internal/decision"
	"traderelay/internal/logger"
	"traderelay/internal/types"
)

// ErrDuplicate marks a message the engine has already processed.
var ErrDuplicate = errors.New("app: duplicate message")

// ErrCooldown marks a market signal arriving inside the per-symbol cooldown.
var ErrCooldown = errors.New("app: market order cooldown")

// HandleMessage is the intake path for one channel message: dedup, analyze,
// then route to the signal or update pipeline.
func (a *App) HandleMessage(ctx context.Context, msg analyzer.Message) error {
	if a.dedup.Seen(msg.ID) {
		logger.Debugf("message %d already processed", msg.ID)
		return ErrDuplicate
	}
	res, err := a.analyzer.Analyze(ctx, msg)
	if err != nil {
		return fmt.Errorf("analyze message %d: %w", msg.ID, err)
	}
	switch res.Kind {
	case analyzer.KindSignal:
		sig := *res.Signal
		if sig.MessageID == 0 {
			sig.MessageID = msg.ID
		}
		return a.ProcessSignal(ctx, sig)
	case analyzer.KindUpdate:
		upd := *res.Update
		if upd.MessageID == 0 {
			upd.MessageID = msg.ID
		}
		if upd.OriginMessageID == 0 && msg.ReplyToID != 0 {
			upd.OriginMessageID = msg.ReplyToID
		}
		return a.Dispatch(ctx, upd)
	default:
		logger.Debugf("message %d ignored by analyzer", msg.ID)
		return nil
	}
}

// ProcessSignal runs a signal through the decision engine and either
// executes it or parks it behind a confirmation token.
func (a *App) ProcessSignal(ctx context.Context, sig types.Signal) error {
	a.mu.RLock()
	ingest := a.ingest
	a.mu.RUnlock()

	if sig.Kind == types.OrderMarket && !a.cooldown.Allow(sig.Symbol) {
		logger.Infof("market signal on %s suppressed, cooldown %s left",
			sig.Symbol, a.cooldown.Remaining(sig.Symbol))
		return ErrCooldown
	}
	// Only market orders park: an immediate fill is what the confirmation
	// guard is for, while a resting order can still be cancelled.
	if ingest.RequireConfirmation && sig.Kind == types.OrderMarket {
		conf := a.confirms.Park(sig)
		a.notifySend(ctx, fmt.Sprintf("Confirm %s %s %s? Token: %s (valid %s)",
			sig.Side, sig.Kind, sig.Symbol, conf.ID, conf.ExpiresAt.Sub(conf.CreatedAt)))
		logger.Infof("signal %d parked for confirmation %s", sig.MessageID, conf.ID)
		return nil
	}
	return a.execute(ctx, sig)
}

// Approve resolves a confirmation token and executes the parked signal. The
// signal is re-scored against the market at approval time, not arrival time.
func (a *App) Approve(ctx context.Context, id string) error {
	conf, err := a.confirms.Take(id)
	if err != nil {
		return err
	}
	return a.execute(ctx, conf.Signal)
}

// Dispatch applies an update request to its target trades.
func (a *App) Dispatch(ctx context.Context, req types.UpdateRequest) error {
	a.mu.RLock()
	d := a.dispatcher
	a.mu.RUnlock()
	return d.Dispatch(ctx, req)
}

func (a *App) execute(ctx context.Context, sig types.Signal) error {
	cal, err := a.calcs.Calculator(ctx, sig.Symbol)
	if err != nil {
		return fmt.Errorf("symbol %s: %w", sig.Symbol, err)
	}
	tick, err := a.venue.Tick(ctx, sig.Symbol)
	if err != nil {
		return fmt.Errorf("tick %s: %w", sig.Symbol, err)
	}

	a.mu.RLock()
	engine, strategy, executor := a.engine, a.strategy, a.executor
	a.mu.RUnlock()

	verdict, err := engine.Evaluate(sig, tick, cal)
	if err != nil {
		if errors.Is(err, decision.ErrRejectedByPolicy) {
			logger.Infof("signal %d rejected: %s", sig.MessageID, verdict.Reason)
			a.notifySend(ctx, fmt.Sprintf("Signal for %s rejected: %s", sig.Symbol, verdict.Reason))
		}
		return err
	}

	plan, err := strategy.Plan(sig, verdict.PendingKind, tick, cal)
	if err != nil {
		return fmt.Errorf("plan %s via %s: %w", sig.Symbol, strategy.Name(), err)
	}
	placed, err := executor.Execute(ctx, sig, plan, cal)
	if len(placed) > 0 {
		a.notifySend(ctx, fmt.Sprintf("Placed %d order(s) for %s %s %s",
			len(placed), sig.Side, sig.Kind, sig.Symbol))
	}
	return err
}

func (a *App) notifySend(ctx context.Context, text string) {
	if err := a.notifier.Send(ctx, text); err != nil {
		logger.Warnf("notify: %v", err)
	}
}
