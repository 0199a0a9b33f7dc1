package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/measure"
	"github.com/fernicar/TalkingtoDragons-TINS-Edition/internal/ollama"
)

type step struct {
	text string
	err  error
}

// scriptedStreamer replays steps in order and repeats the last one once the
// script runs out.
type scriptedStreamer struct {
	steps    []step
	requests []ollama.GenerateRequest
}

func (s *scriptedStreamer) Generate(ctx context.Context, req ollama.GenerateRequest) (string, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i].text, s.steps[i].err
}

func (s *scriptedStreamer) calls() int { return len(s.requests) }

type fakeRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	results  map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{attempts: map[string]int{}, results: map[string]int{}}
}

func (f *fakeRecorder) ObserveAttempt(language, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[language+"/"+status]++
}

func (f *fakeRecorder) ObserveResult(language, outcome string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[language+"/"+outcome]++
}

// englishText builds a prompt of exactly n words; end is appended to the
// last word.
func englishText(n int, end string) string {
	words := make([]string, n)
	vocab := []string{"ancient", "dragon", "soars", "through", "a", "violent", "storm", "lit", "by", "lightning"}
	for i := range words {
		words[i] = vocab[i%len(vocab)]
	}
	return strings.Join(words, " ") + end
}

// chineseText builds text of exactly n non-space characters including end.
func chineseText(n int, end string) string {
	if end == "" {
		return strings.Repeat("龙", n)
	}
	return strings.Repeat("龙", n-1) + end
}

func TestGenerate_StrictAcceptFirstAttempt(t *testing.T) {
	text := englishText(260, ".")
	s := &scriptedStreamer{steps: []step{{text: text}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "a dragon", "gemma3:27b", internal.Enhance)

	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, text, res.Text)
	assert.Equal(t, 260, res.Metric)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, s.calls())
}

func TestGenerate_LenientAcceptOnSecondAttempt(t *testing.T) {
	first := englishText(160, ".")
	second := englishText(165, ".")
	s := &scriptedStreamer{steps: []step{{text: first}, {text: second}}}
	p := EnglishProfile()

	res := New(p, s, nil).Generate(context.Background(), "a dragon", "m", internal.Enhance)

	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, second, res.Text)
	assert.Equal(t, 165, res.Metric)
	assert.Equal(t, 2, res.Attempts)
	require.Equal(t, 2, s.calls())

	assert.Equal(t, p.Prompt(internal.Enhance, "a dragon"), s.requests[0].Prompt)
	assert.Equal(t, p.ExpandPrompt(internal.Enhance, "a dragon", first), s.requests[1].Prompt)
	assert.Contains(t, s.requests[1].Prompt, "Expand this response to be more detailed: "+first)
}

func TestGenerate_IncompleteLongEnoughGetsTerminator(t *testing.T) {
	text := englishText(170, "")
	s := &scriptedStreamer{steps: []step{{text: text}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, text+".", res.Text)
	assert.Equal(t, 170, res.Metric)
	assert.Equal(t, 1, s.calls())
}

func TestGenerate_IncompleteOnFinalAttemptReturnedAsIs(t *testing.T) {
	short := englishText(40, ".")
	incomplete := englishText(170, "")
	s := &scriptedStreamer{steps: []step{{text: short}, {text: short}, {text: incomplete}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, incomplete, res.Text)
	assert.Equal(t, 170, res.Metric)
	assert.Equal(t, 3, res.Attempts)
}

func TestGenerate_ShortEveryAttemptExhausts(t *testing.T) {
	texts := []string{englishText(40, "."), englishText(60, ""), englishText(90, ".")}
	s := &scriptedStreamer{steps: []step{{text: texts[0]}, {text: texts[1]}, {text: texts[2]}}}
	p := EnglishProfile()

	res := New(p, s, nil).Generate(context.Background(), "seed", "m", internal.Vary)

	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, texts[2], res.Text)
	assert.Equal(t, 90, res.Metric)
	assert.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, s.calls())
	assert.Equal(t, p.ExpandPrompt(internal.Vary, "seed", texts[0]), s.requests[1].Prompt)
	assert.Equal(t, p.ExpandPrompt(internal.Vary, "seed", texts[1]), s.requests[2].Prompt)
}

func TestGenerate_OverLongIsTruncated(t *testing.T) {
	s := &scriptedStreamer{steps: []step{{text: englishText(420, "")}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Truncated, res.Outcome)
	assert.Equal(t, 300, res.Metric)
	assert.Equal(t, 300, measure.Words(res.Text))
	assert.True(t, strings.HasSuffix(res.Text, "."))
	assert.Equal(t, 1, s.calls())
}

func TestGenerate_TransportErrorEveryAttempt(t *testing.T) {
	s := &scriptedStreamer{steps: []step{{err: errors.New("connection refused")}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, res.Failed())
	assert.Equal(t, "[Error generating prompt: connection refused]", res.Text)
	assert.Equal(t, 0, res.Metric)
	assert.Equal(t, 3, res.Attempts)
	assert.Error(t, res.Err)
	assert.Equal(t, 3, s.calls())
}

func TestGenerate_ChineseErrorMarker(t *testing.T) {
	s := &scriptedStreamer{steps: []step{{err: errors.New("timeout")}}}

	res := New(ChineseProfile(), s, nil).Generate(context.Background(), "龙", "m", internal.Enhance)

	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, "[生成提示词时出错: timeout]", res.Text)
	assert.Equal(t, 0, res.Metric)
}

func TestGenerate_ErrorThenSuccessKeepsPrompt(t *testing.T) {
	text := englishText(250, "!")
	s := &scriptedStreamer{steps: []step{{err: errors.New("reset")}, {text: text}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	require.Equal(t, 2, s.calls())
	assert.Equal(t, s.requests[0].Prompt, s.requests[1].Prompt)
}

func TestGenerate_ErrorOnFinalAttemptDiscardsCandidates(t *testing.T) {
	s := &scriptedStreamer{steps: []step{
		{text: englishText(50, ".")},
		{text: englishText(60, ".")},
		{err: errors.New("connection refused")},
	}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, "[Error generating prompt: connection refused]", res.Text)
	assert.Equal(t, 0, res.Metric)
	assert.Equal(t, 3, res.Attempts)
	assert.Error(t, res.Err)
	assert.Equal(t, 3, s.calls())
}

func TestGenerate_ErrorBeforeFinalAttemptKeepsRetrying(t *testing.T) {
	short := englishText(50, ".")
	s := &scriptedStreamer{steps: []step{{text: short}, {err: errors.New("boom")}, {text: short}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Exhausted, res.Outcome)
	assert.Equal(t, short, res.Text)
	assert.Equal(t, 50, res.Metric)
	assert.Equal(t, 3, s.calls())
}

func TestGenerate_SanitizesOutput(t *testing.T) {
	raw := "<think>plan</think>\nEnhanced prompt: " + englishText(230, ".")
	s := &scriptedStreamer{steps: []step{{text: raw}}}

	res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, englishText(230, "."), res.Text)
}

func TestGenerate_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &scriptedStreamer{steps: []step{{err: context.Canceled}}}

	res := New(EnglishProfile(), s, nil).Generate(ctx, "seed", "m", internal.Enhance)

	assert.Equal(t, Failed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, s.calls())
}

func TestGenerate_RequestParameters(t *testing.T) {
	tests := []struct {
		name      string
		profile   Profile
		maxTokens int
	}{
		{"english", EnglishProfile(), 400},
		{"chinese", ChineseProfile(), 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scriptedStreamer{steps: []step{{err: errors.New("x")}}}
			New(tt.profile, s, nil).Generate(context.Background(), "seed", "qwen3:14b", internal.Vary)

			require.NotEmpty(t, s.requests)
			req := s.requests[0]
			assert.Equal(t, "qwen3:14b", req.Model)
			assert.True(t, req.Stream)
			assert.Equal(t, tt.maxTokens, req.Options.NumPredict)
			assert.InDelta(t, 0.7, req.Options.Temperature, 1e-9)
			assert.InDelta(t, 0.85, req.Options.TopP, 1e-9)
			assert.True(t, strings.HasPrefix(req.Prompt, tt.profile.VarySystem))
			assert.True(t, strings.HasSuffix(req.Prompt, tt.profile.VaryLabel+"seed"))
		})
	}
}

func TestGenerate_ChineseStrictAndLenient(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		text := chineseText(150, "。")
		s := &scriptedStreamer{steps: []step{{text: text}}}

		res := New(ChineseProfile(), s, nil).Generate(context.Background(), "龙", "m", internal.Enhance)

		assert.Equal(t, Accepted, res.Outcome)
		assert.Equal(t, 150, res.Metric)
		assert.Equal(t, 1, s.calls())
	})

	t.Run("lenient after retry", func(t *testing.T) {
		text := chineseText(90, "！")
		s := &scriptedStreamer{steps: []step{{text: text}}}

		res := New(ChineseProfile(), s, nil).Generate(context.Background(), "龙", "m", internal.Enhance)

		assert.Equal(t, Accepted, res.Outcome)
		assert.Equal(t, 90, res.Metric)
		assert.Equal(t, 2, res.Attempts)
		assert.Contains(t, s.requests[1].Prompt, "请扩展这个回应，使其更详细: ")
	})

	t.Run("incomplete gets full stop", func(t *testing.T) {
		text := chineseText(85, "")
		s := &scriptedStreamer{steps: []step{{text: text}}}

		res := New(ChineseProfile(), s, nil).Generate(context.Background(), "龙", "m", internal.Enhance)

		assert.Equal(t, Accepted, res.Outcome)
		assert.Equal(t, text+"。", res.Text)
		assert.Equal(t, 86, res.Metric)
	})
}

func TestGenerate_Recorder(t *testing.T) {
	s := &scriptedStreamer{steps: []step{{err: errors.New("x")}, {text: englishText(40, ".")}, {text: englishText(240, ".")}}}
	rec := newFakeRecorder()
	g := New(EnglishProfile(), s, nil)
	g.SetRecorder(rec)

	res := g.Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 1, rec.attempts["en/error"])
	assert.Equal(t, 1, rec.attempts["en/expand"])
	assert.Equal(t, 1, rec.attempts["en/accepted"])
	assert.Equal(t, 1, rec.results["en/accepted"])
}

func TestGenerate_SetMaxAttempts(t *testing.T) {
	s := &scriptedStreamer{steps: []step{{err: errors.New("x")}}}
	g := New(EnglishProfile(), s, nil)
	g.SetMaxAttempts(5)
	g.SetMaxAttempts(0)

	res := g.Generate(context.Background(), "seed", "m", internal.Enhance)

	assert.Equal(t, 5, res.Attempts)
	assert.Equal(t, 5, s.calls())
}

func TestGenerateEntryPoints(t *testing.T) {
	en := &scriptedStreamer{steps: []step{{text: englishText(260, ".")}}}
	text, words := GenerateEnglish(context.Background(), en, "a dragon", "m", true)
	assert.Equal(t, 260, words)
	assert.Equal(t, englishText(260, "."), text)
	assert.True(t, strings.HasPrefix(en.requests[0].Prompt, englishEnhanceSystem))

	zh := &scriptedStreamer{steps: []step{{text: chineseText(120, "。")}}}
	text, chars := GenerateChinese(context.Background(), zh, "龙", "m", false)
	assert.Equal(t, 120, chars)
	assert.Equal(t, chineseText(120, "。"), text)
	assert.True(t, strings.HasPrefix(zh.requests[0].Prompt, chineseVarySystem))
}

func TestEnglishTruncationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(301, 700).Draw(rt, "words")
		words := make([]string, n)
		for i := range words {
			words[i] = rapid.StringMatching(`[a-z]{1,8}[.,!?]?`).Draw(rt, "word")
		}
		s := &scriptedStreamer{steps: []step{{text: strings.Join(words, " ")}}}

		res := New(EnglishProfile(), s, nil).Generate(context.Background(), "seed", "m", internal.Enhance)

		if res.Metric != 300 || measure.Words(res.Text) != 300 {
			rt.Fatalf("metric = %d, words = %d, want 300", res.Metric, measure.Words(res.Text))
		}
		if !measure.EndsWithAny(res.Text, ".!?") {
			rt.Fatalf("truncated text does not end in a terminator: %q", res.Text[len(res.Text)-10:])
		}
	})
}

func TestChineseTruncationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		raw := rapid.StringMatching(`[龙云雨雷电，。！？ a]{240,400}`).
			Filter(func(s string) bool { return measure.Chars(s) > 200 }).
			Draw(rt, "raw")
		s := &scriptedStreamer{steps: []step{{text: raw}}}

		res := New(ChineseProfile(), s, nil).Generate(context.Background(), "龙", "m", internal.Enhance)

		if res.Outcome != Truncated {
			rt.Fatalf("outcome = %s, want truncated", res.Outcome)
		}
		if res.Metric != 200 || measure.Chars(res.Text) != 200 {
			rt.Fatalf("metric = %d, chars = %d, want 200", res.Metric, measure.Chars(res.Text))
		}
		if !measure.EndsWithAny(res.Text, ChinesePolicy.Terminators) {
			rt.Fatalf("truncated text does not end in a terminator: %q", res.Text)
		}
	})
}
