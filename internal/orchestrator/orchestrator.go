// Package orchestrator runs a batch of seeds through the generation driver
// for the requested language, one seed at a time, and collects one Result
// per seed in seed order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/generator"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/validator"
)

// MaxCount is the largest number of variations a theme batch may request.
const MaxCount = 1000

var (
	ErrNoSeeds             = errors.New("no seeds to process")
	ErrNoModel             = errors.New("no model selected")
	ErrUnsupportedLanguage = errors.New("no driver for language")
	ErrEmptyTheme          = errors.New("theme is empty")
	ErrInvalidCount        = fmt.Errorf("count must be between 1 and %d", MaxCount)
)

// Driver produces the Result for one seed. Implemented by generator.Generator.
type Driver interface {
	Generate(ctx context.Context, seed, model string, mode internal.Mode) generator.Result
}

// Validator checks a finished prompt's language.
type Validator interface {
	IsValid(text string, lang internal.Language) (bool, error)
}

// History persists batch headers and per-seed results. Implemented by
// store.Store.
type History interface {
	SaveBatch(ctx context.Context, b internal.BatchRecord) error
	SaveResult(ctx context.Context, r internal.ResultRecord) error
	CompleteBatch(ctx context.Context, batchID, status string) error
}

// BatchRecorder counts batch runs. Implemented by metrics.Collector.
type BatchRecorder interface {
	ObserveBatch(mode, language string)
}

type EventKind int

const (
	// EventProgress is emitted before the driver is called for a seed.
	EventProgress EventKind = iota
	// EventResult is emitted once the seed's Result is appended.
	EventResult
)

// Event is delivered to the Listener on the batch goroutine. Index is
// zero-based; Result is set only for EventResult.
type Event struct {
	Kind    EventKind
	Index   int
	Total   int
	Seed    string
	Message string
	Result  generator.Result
}

type Listener func(Event)

type OrchestratorConfig struct {
	// SeedTimeout bounds the driver call for one seed, all attempts
	// included. Zero means no bound beyond the per-request HTTP timeout.
	SeedTimeout    time.Duration
	SkipValidation bool
}

// Batch is one run over an ordered list of seeds.
type Batch struct {
	Seeds    []string
	Model    string
	Mode     internal.Mode
	Language internal.Language
}

type BatchResult struct {
	ID        string
	Results   []generator.Result
	Succeeded int
	Failed    int
	// Mismatched counts results the validator judged to be in the wrong
	// language. They are kept as is.
	Mismatched int
}

type Orchestrator struct {
	drivers   map[internal.Language]Driver
	config    OrchestratorConfig
	validator Validator
	history   History
	recorder  BatchRecorder
	listener  Listener
	logger    *zap.Logger
}

func New(drivers map[internal.Language]Driver, config OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		drivers: drivers,
		config:  config,
		logger:  logger.With(zap.String("component", "orchestrator")),
	}
	if !config.SkipValidation {
		o.validator = validator.New()
	}
	return o
}

// SetValidator replaces the default validator. A nil value disables
// validation.
func (o *Orchestrator) SetValidator(v Validator) {
	o.validator = v
}

func (o *Orchestrator) SetHistory(h History) {
	o.history = h
}

func (o *Orchestrator) SetRecorder(r BatchRecorder) {
	o.recorder = r
}

func (o *Orchestrator) SetListener(l Listener) {
	o.listener = l
}

// Run processes every seed of b in order and returns one Result per seed.
// Invalid input is rejected before any driver call. A Failed result never
// stops the batch; cancellation of ctx does, and Run then returns the
// results completed so far together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, b Batch) (*BatchResult, error) {
	if len(b.Seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if strings.TrimSpace(b.Model) == "" {
		return nil, ErrNoModel
	}
	driver, ok := o.drivers[b.Language]
	if !ok || driver == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, b.Language)
	}

	result := &BatchResult{
		ID:      uuid.New().String(),
		Results: make([]generator.Result, 0, len(b.Seeds)),
	}
	logger := o.logger.With(
		zap.String("batch", result.ID),
		zap.Stringer("mode", b.Mode),
		zap.Stringer("language", b.Language),
		zap.String("model", b.Model))

	if o.recorder != nil {
		o.recorder.ObserveBatch(b.Mode.String(), b.Language.String())
	}
	o.saveBatch(ctx, logger, internal.BatchRecord{
		ID:        result.ID,
		Mode:      b.Mode.String(),
		Language:  b.Language.String(),
		Model:     b.Model,
		SeedCount: len(b.Seeds),
		Timestamp: time.Now(),
	})

	logger.Info("batch started", zap.Int("seeds", len(b.Seeds)))
	total := len(b.Seeds)

	for i, seed := range b.Seeds {
		if err := ctx.Err(); err != nil {
			o.completeBatch(logger, result.ID, "cancelled")
			logger.Warn("batch cancelled", zap.Int("completed", i))
			return result, err
		}

		o.emit(Event{
			Kind:    EventProgress,
			Index:   i,
			Total:   total,
			Seed:    seed,
			Message: fmt.Sprintf("processing seed %d of %d", i+1, total),
		})

		res := o.generate(ctx, driver, seed, b.Model, b.Mode)
		if ctx.Err() != nil {
			// Cancelled mid-seed: the partial result is discarded.
			o.completeBatch(logger, result.ID, "cancelled")
			logger.Warn("batch cancelled", zap.Int("completed", i))
			return result, ctx.Err()
		}

		if res.Failed() {
			result.Failed++
			logger.Warn("seed failed", zap.Int("seq", i), zap.Error(res.Err))
		} else {
			result.Succeeded++
			if o.validator != nil {
				if ok, err := o.validator.IsValid(res.Text, b.Language); !ok {
					result.Mismatched++
					logger.Warn("result language mismatch", zap.Int("seq", i), zap.Error(err))
				}
			}
		}
		result.Results = append(result.Results, res)
		o.saveResult(ctx, logger, result.ID, i, seed, res)

		o.emit(Event{
			Kind:    EventResult,
			Index:   i,
			Total:   total,
			Seed:    seed,
			Message: fmt.Sprintf("finished seed %d of %d", i+1, total),
			Result:  res,
		})
	}

	o.completeBatch(logger, result.ID, "completed")
	logger.Info("batch finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (o *Orchestrator) generate(ctx context.Context, d Driver, seed, model string, mode internal.Mode) generator.Result {
	if o.config.SeedTimeout <= 0 {
		return d.Generate(ctx, seed, model, mode)
	}
	seedCtx, cancel := context.WithTimeout(ctx, o.config.SeedTimeout)
	defer cancel()
	return d.Generate(seedCtx, seed, model, mode)
}

func (o *Orchestrator) emit(e Event) {
	if o.listener != nil {
		o.listener(e)
	}
}

func (o *Orchestrator) saveBatch(ctx context.Context, logger *zap.Logger, rec internal.BatchRecord) {
	if o.history == nil {
		return
	}
	if err := o.history.SaveBatch(ctx, rec); err != nil {
		logger.Warn("failed to save batch", zap.Error(err))
	}
}

func (o *Orchestrator) saveResult(ctx context.Context, logger *zap.Logger, batchID string, seq int, seed string, res generator.Result) {
	if o.history == nil {
		return
	}
	rec := internal.ResultRecord{
		BatchID:  batchID,
		Seq:      seq,
		Seed:     seed,
		Text:     res.Text,
		Metric:   res.Metric,
		Outcome:  res.Outcome.String(),
		Attempts: res.Attempts,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := o.history.SaveResult(ctx, rec); err != nil {
		logger.Warn("failed to save result", zap.Int("seq", seq), zap.Error(err))
	}
}

func (o *Orchestrator) completeBatch(logger *zap.Logger, batchID, status string) {
	if o.history == nil {
		return
	}
	// The run context may already be cancelled; the status update must still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.history.CompleteBatch(ctx, batchID, status); err != nil {
		logger.Warn("failed to complete batch", zap.Error(err))
	}
}
