// Package generator drives the LLM to produce one finished text-to-image
// prompt per seed. A Generator is parameterised by a language Profile; the
// English and Chinese pipelines share the same acceptance state machine.
package generator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/ollama"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/postprocess"
)

const (
	DefaultMaxAttempts = 3
	DefaultTemperature = 0.7
	DefaultTopP        = 0.85
)

// Streamer performs one streamed generation call and returns the
// concatenated response text.
type Streamer interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

// Recorder receives per-attempt and per-seed observations. Implemented by
// metrics.Collector.
type Recorder interface {
	ObserveAttempt(language, status string)
	ObserveResult(language, outcome string, d time.Duration)
}

// Outcome is the terminal state a seed's generation ended in.
type Outcome int

const (
	// Accepted: the candidate met the strict or lenient acceptance rule, or
	// was long enough and only lacked a terminator.
	Accepted Outcome = iota
	// Truncated: the candidate exceeded the upper bound and was cut to it.
	Truncated
	// Exhausted: attempts ran out; the last candidate is returned as is.
	Exhausted
	// Failed: no candidate was ever produced; Text holds an error marker.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Truncated:
		return "truncated"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Candidate is a sanitized attempt output and its length in language units.
type Candidate struct {
	Text   string
	Metric int
}

// Result is the single value produced per seed. Err is set only for Failed.
type Result struct {
	Text     string
	Metric   int
	Outcome  Outcome
	Attempts int
	Err      error
}

func (r Result) Failed() bool {
	return r.Outcome == Failed
}

type Generator struct {
	profile     Profile
	streamer    Streamer
	recorder    Recorder
	logger      *zap.Logger
	maxAttempts int
	temperature float64
	topP        float64
}

func New(profile Profile, streamer Streamer, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		profile:  profile,
		streamer: streamer,
		logger: logger.With(
			zap.String("component", "generator"),
			zap.Stringer("language", profile.Policy.Language)),
		maxAttempts: DefaultMaxAttempts,
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
	}
}

func (g *Generator) SetRecorder(r Recorder) {
	g.recorder = r
}

// SetMaxAttempts overrides the attempt budget; values below 1 are ignored.
func (g *Generator) SetMaxAttempts(n int) {
	if n >= 1 {
		g.maxAttempts = n
	}
}

func (g *Generator) Profile() Profile {
	return g.profile
}

// Generate produces the Result for one seed. It never returns an error:
// transport failures consume attempts from the retry budget, and one on the
// final attempt surfaces as a Failed result carrying the error marker.
func (g *Generator) Generate(ctx context.Context, seed, model string, mode internal.Mode) Result {
	start := time.Now()
	res := g.run(ctx, seed, model, mode)

	if g.recorder != nil {
		g.recorder.ObserveResult(g.profile.Policy.Language.String(), res.Outcome.String(), time.Since(start))
	}
	g.logger.Info("seed finished",
		zap.String("outcome", res.Outcome.String()),
		zap.Int("metric", res.Metric),
		zap.Int("attempts", res.Attempts),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

func (g *Generator) run(ctx context.Context, seed, model string, mode internal.Mode) Result {
	policy := g.profile.Policy
	prompt := g.profile.Prompt(mode, seed)

	var (
		last    *Candidate
		attempt int
	)

	for attempt = 0; attempt < g.maxAttempts; attempt++ {
		final := attempt == g.maxAttempts-1

		raw, err := g.streamer.Generate(ctx, g.request(model, prompt))
		if err != nil {
			g.observeAttempt("error")
			g.logger.Warn("generation attempt failed",
				zap.Int("attempt", attempt+1), zap.Error(err))
			if ctx.Err() != nil {
				return g.failed(ctx.Err(), attempt+1)
			}
			if final {
				// An error on the last attempt wins over any earlier candidate.
				return g.failed(err, attempt+1)
			}
			continue
		}

		text := postprocess.Sanitize(raw, policy.Language)
		if postprocess.PossiblyTruncated(text, policy.Language) {
			g.logger.Debug("short candidate ends on full stop, possibly truncated",
				zap.Int("attempt", attempt+1))
		}
		cand := Candidate{Text: text, Metric: policy.Measure(text)}
		last = &cand
		complete := policy.Complete(cand.Text)

		if cand.Metric > policy.Max {
			g.observeAttempt("truncated")
			cut := policy.Truncate(cand.Text)
			return Result{Text: cut, Metric: policy.Measure(cut), Outcome: Truncated, Attempts: attempt + 1}
		}

		if complete && cand.Metric >= policy.StrictMin {
			g.observeAttempt("accepted")
			return Result{Text: cand.Text, Metric: cand.Metric, Outcome: Accepted, Attempts: attempt + 1}
		}

		if complete && cand.Metric >= policy.LenientMin && attempt >= 1 {
			g.observeAttempt("accepted")
			return Result{Text: cand.Text, Metric: cand.Metric, Outcome: Accepted, Attempts: attempt + 1}
		}

		if final {
			g.observeAttempt("rejected")
			break
		}

		if !complete && cand.Metric >= policy.LenientMin {
			g.observeAttempt("accepted")
			fixed := policy.Terminate(cand.Text)
			return Result{Text: fixed, Metric: policy.Measure(fixed), Outcome: Accepted, Attempts: attempt + 1}
		}

		// Too short, or long enough only for lenient acceptance on the first
		// attempt: ask the model to expand what it produced.
		g.observeAttempt("expand")
		g.logger.Debug("candidate short, requesting expansion",
			zap.Int("attempt", attempt+1),
			zap.Int("metric", cand.Metric),
			zap.Bool("complete", complete))
		prompt = g.profile.ExpandPrompt(mode, seed, cand.Text)
	}

	if attempt > g.maxAttempts-1 {
		attempt = g.maxAttempts - 1
	}
	if last != nil {
		return Result{Text: last.Text, Metric: last.Metric, Outcome: Exhausted, Attempts: attempt + 1}
	}
	return Result{Text: g.profile.FailedMarker, Outcome: Failed, Attempts: attempt + 1}
}

func (g *Generator) request(model, prompt string) ollama.GenerateRequest {
	return ollama.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: true,
		Options: ollama.Options{
			NumPredict:  g.profile.MaxOutputTokens,
			Temperature: g.temperature,
			TopP:        g.topP,
		},
	}
}

func (g *Generator) failed(err error, attempts int) Result {
	return Result{
		Text:     g.profile.ErrorMarker(err),
		Metric:   0,
		Outcome:  Failed,
		Attempts: attempts,
		Err:      err,
	}
}

func (g *Generator) observeAttempt(status string) {
	if g.recorder != nil {
		g.recorder.ObserveAttempt(g.profile.Policy.Language.String(), status)
	}
}

func modeFor(isEnhancement bool) internal.Mode {
	if isEnhancement {
		return internal.Enhance
	}
	return internal.Vary
}

// GenerateEnglish runs the English pipeline for one seed and returns the
// prompt text and its word count.
func GenerateEnglish(ctx context.Context, s Streamer, seed, model string, isEnhancement bool) (string, int) {
	r := New(EnglishProfile(), s, nil).Generate(ctx, seed, model, modeFor(isEnhancement))
	return r.Text, r.Metric
}

// GenerateChinese runs the Chinese pipeline for one seed and returns the
// prompt text and its non-space character count.
func GenerateChinese(ctx context.Context, s Streamer, seed, model string, isEnhancement bool) (string, int) {
	r := New(ChineseProfile(), s, nil).Generate(ctx, seed, model, modeFor(isEnhancement))
	return r.Text, r.Metric
}
