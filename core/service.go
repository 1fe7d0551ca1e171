package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	coreerrors "fall/core/errors"
	"fall/core/events"
	"fall/core/state"
	"fall/core/types"
	"fall/journal"
	"fall/native/amm"
	nativecommon "fall/native/common"
	"fall/native/lending"
	"fall/observability"
	telemetry "fall/observability/otel"
	"fall/storage"
)

// Options wires the collaborators of a Service. Zero values select no-op
// implementations, except Clock which is required.
type Options struct {
	Clock   nativecommon.Clock
	Lending types.LendingParams
	Pauses  nativecommon.PauseView
	Emitter events.Emitter
	Journal journal.Recorder
	Metrics *observability.EngineMetrics
	Logger  *slog.Logger
	Faucet  bool
}

// Service is the single writer over the accounting state. Every mutating
// operation runs against an overlay that is committed in one batch or
// discarded as a whole.
type Service struct {
	mu sync.RWMutex

	db      storage.Database
	clock   nativecommon.Clock
	params  types.LendingParams
	pauses  nativecommon.PauseView
	emitter events.Emitter
	journal journal.Recorder
	metrics *observability.EngineMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	faucet  bool
}

func NewService(db storage.Database, opts Options) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("core: clock required")
	}
	s := &Service{
		db:      db,
		clock:   opts.Clock,
		params:  opts.Lending.Normalize(),
		pauses:  opts.Pauses,
		emitter: opts.Emitter,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		tracer:  telemetry.Tracer("fall/core"),
		faucet:  opts.Faucet,
	}
	if s.emitter == nil {
		s.emitter = events.NoopEmitter{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// SetLogger replaces the service logger.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// LendingParams returns the constants the lending engine runs with.
func (s *Service) LendingParams() types.LendingParams { return s.params }

// tx is the view an operation body gets of the pending state.
type tx struct {
	height  uint64
	state   *state.Manager
	ledger  *state.Ledger
	amm     *amm.Engine
	lending *lending.Engine
	pool    types.PoolID
}

// execute runs fn under the write lock against a fresh overlay. op names the
// operation in spans, metrics and the journal.
func (s *Service) execute(ctx context.Context, op string, poolID types.PoolID, actor string, fn func(*tx) error) (err error) {
	ctx, span := s.tracer.Start(ctx, "core."+op, trace.WithAttributes(
		attribute.String("fall.operation", op),
		attribute.String("fall.pool", poolLabel(poolID)),
	))
	started := time.Now()
	defer func() {
		class := coreerrors.Classify(err)
		s.metrics.Observe(op, string(class), time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(class))
		}
		span.End()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	height, err := s.clock.CurrentHeight()
	if err != nil {
		return fmt.Errorf("core: read clock: %w", err)
	}
	overlay := storage.NewOverlay(s.db)
	manager := state.NewManager(overlay)
	last, err := manager.LastHeight()
	if err != nil {
		return err
	}
	if height < last {
		s.logger.Error("clock regression", "operation", op, "height", height, "last", last)
		return fmt.Errorf("%w: %d < %d", coreerrors.ErrClockRegression, height, last)
	}
	span.SetAttributes(attribute.Int64("fall.height", int64(height)))

	buf := &events.Buffer{}
	t := &tx{height: height, state: manager, ledger: state.NewLedger(manager), pool: poolID}
	t.amm = amm.NewEngine()
	t.amm.SetState(manager)
	t.amm.SetLedger(t.ledger)
	t.amm.SetEmitter(buf)
	t.amm.SetPauses(s.pauses)
	t.amm.SetBlockHeight(height)
	t.lending = lending.NewEngine(s.params)
	t.lending.SetState(manager)
	t.lending.SetLedger(t.ledger)
	t.lending.SetEmitter(buf)
	t.lending.SetPauses(s.pauses)
	t.lending.SetBlockHeight(height)

	if err := fn(t); err != nil {
		overlay.Discard()
		s.logger.Warn("operation rejected", "operation", op, "pool", poolLabel(t.pool), "height", height, "error", err)
		return err
	}
	if err := manager.SetLastHeight(height); err != nil {
		overlay.Discard()
		return err
	}
	var pool *types.Pool
	if !t.pool.IsZero() {
		if pool, err = manager.Pool(t.pool); err != nil {
			overlay.Discard()
			return err
		}
	}
	if err := overlay.Commit(); err != nil {
		return fmt.Errorf("core: commit %s: %w", op, err)
	}

	committed := buf.Events()
	s.afterCommit(ctx, op, actor, height, pool, committed)
	buf.Flush(s.emitter)
	s.logger.Debug("operation committed", "operation", op, "pool", poolLabel(t.pool), "height", height, "events", len(committed))
	return nil
}

func (s *Service) afterCommit(ctx context.Context, op, actor string, height uint64, pool *types.Pool, committed []events.Event) {
	poolID := ""
	if pool != nil {
		poolID = pool.ID.String()
		s.metrics.RecordPool(poolID, pool.AssetA, pool.AssetB, pool.ReserveA, pool.ReserveB,
			pool.BorrowInterestAccumulator, pool.ShareLendingAccumulator)
	}
	rendered := make([]*types.Event, 0, len(committed))
	for _, e := range committed {
		if sat, ok := e.(events.AccumulatorSaturated); ok {
			s.metrics.RecordSaturation(sat.Kind)
			s.logger.Error("accumulator saturated", "pool", sat.Pool.String(), "kind", sat.Kind, "height", height)
		}
		rendered = append(rendered, e.Event())
	}
	if s.journal == nil {
		return
	}
	detail, err := json.Marshal(rendered)
	if err != nil {
		s.logger.Warn("journal encode failed", "operation", op, "error", err)
		return
	}
	entry := journal.Entry{Operation: op, Pool: poolID, Actor: actor, Height: height, Detail: string(detail)}
	if _, err := s.journal.Record(ctx, entry); err != nil {
		s.logger.Warn("journal append failed", "operation", op, "error", err)
	}
}

func poolLabel(id types.PoolID) string {
	if id.IsZero() {
		return ""
	}
	return id.String()
}
