package inference

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samcharles93/seedtext/internal/tokenizer"
)

// stubModel returns whatever next produces for each call.
type stubModel struct {
	window int
	width  int
	next   func(call int, window []int) ([]float32, error)

	mu      sync.Mutex
	calls   int
	windows [][]int
	notSafe bool
}

func (m *stubModel) InputShape() []int { return []int{-1, m.window} }

func (m *stubModel) OutputWidth() int { return m.width }

func (m *stubModel) ConcurrencySafe() bool { return !m.notSafe }

func (m *stubModel) Predict(_ context.Context, batch [][]int) ([][]float32, error) {
	m.mu.Lock()
	call := m.calls
	m.calls++
	m.windows = append(m.windows, append([]int(nil), batch[0]...))
	m.mu.Unlock()

	p, err := m.next(call, batch[0])
	if err != nil {
		return nil, err
	}
	return [][]float32{p}, nil
}

// peaked returns a distribution with all mass on index idx.
func peaked(width, idx int) []float32 {
	p := make([]float32, width)
	p[idx] = 1
	return p
}

func uniform(width int) []float32 {
	p := make([]float32, width)
	for i := range p {
		p[i] = 1 / float32(width)
	}
	return p
}

// fiftyWordVocab holds "the", "quick", "brown" and w4..w50.
func fiftyWordVocab(t *testing.T) *tokenizer.WordTokenizer {
	t.Helper()
	index := map[string]int{"the": 1, "quick": 2, "brown": 3}
	for id := 4; id <= 50; id++ {
		index[fmt.Sprintf("w%d", id)] = id
	}
	vocab, err := tokenizer.NewVocabulary(index)
	if err != nil {
		t.Fatalf("NewVocabulary: %v", err)
	}
	return tokenizer.New(vocab, tokenizer.DefaultOptions())
}

func newTestGenerator(t *testing.T, m *stubModel, tok *tokenizer.WordTokenizer) *Generator {
	t.Helper()
	h, err := NewHandle(m, tok)
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	return NewGenerator(h)
}

func TestExtendQuickBrownExample(t *testing.T) {
	t.Parallel()
	targets := []int{5, 7, 9}
	m := &stubModel{window: 10, width: 51, next: func(call int, _ []int) ([]float32, error) {
		return peaked(51, targets[call]), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{
		SeedText:    "the quick brown",
		Words:       3,
		Temperature: 0.7,
		Seed:        42,
	}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.Text != "the quick brown w5 w7 w9" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if res.StopReason != StopBudget || res.Stats.TokensGenerated != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	// First window is the seed left-padded to 10.
	want := []int{0, 0, 0, 0, 0, 0, 0, 1, 2, 3}
	if !reflect.DeepEqual(m.windows[0], want) {
		t.Fatalf("unexpected first window: %v", m.windows[0])
	}
	if !reflect.DeepEqual(m.windows[2], []int{0, 0, 0, 0, 0, 1, 2, 3, 5, 7}) {
		t.Fatalf("unexpected third window: %v", m.windows[2])
	}
}

func TestExtendStopsOnMissingID(t *testing.T) {
	t.Parallel()
	vocab, err := tokenizer.NewVocabulary(map[string]int{"a": 1, "b": 2, "d": 4, "e": 5})
	if err != nil {
		t.Fatalf("NewVocabulary: %v", err)
	}
	tok := tokenizer.New(vocab, tokenizer.DefaultOptions())
	m := &stubModel{window: 4, width: 6, next: func(call int, _ []int) ([]float32, error) {
		if call == 0 {
			return peaked(6, 1), nil
		}
		return peaked(6, 3), nil
	}}
	g := newTestGenerator(t, m, tok)

	res, err := g.Extend(context.Background(), &Request{SeedText: "b", Words: 5, Temperature: 1, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if len(res.Generated) != 1 || res.Text != "b a" {
		t.Fatalf("expected exactly one generated word, got %q (%v)", res.Text, res.Generated)
	}
	if res.StopReason != StopUnknownToken {
		t.Fatalf("unexpected stop reason: %s", res.StopReason)
	}
}

func TestExtendZeroBudgetReturnsSeed(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(int, []int) ([]float32, error) {
		t.Fatal("model must not be called")
		return nil, nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	seed := "  The Quick, brown!  "
	res, err := g.Extend(context.Background(), &Request{SeedText: seed, Words: 0, Temperature: 0.7, Seed: 3}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.Text != seed || len(res.Generated) != 0 {
		t.Fatalf("expected seed unchanged, got %q", res.Text)
	}
}

func TestExtendKeepsSeedVerbatim(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(int, []int) ([]float32, error) {
		return peaked(51, 10), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{SeedText: "The QUICK  brown", Words: 2, Temperature: 1, Seed: 3}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.Text != "The QUICK  brown w10 w10" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestExtendTruncatesToWindow(t *testing.T) {
	t.Parallel()
	newModel := func() *stubModel {
		return &stubModel{window: 4, width: 51, next: func(_ int, w []int) ([]float32, error) {
			// Prediction depends only on the window contents.
			return peaked(51, 4+w[0]%40), nil
		}}
	}

	tok := fiftyWordVocab(t)
	m1 := newModel()
	m2 := newModel()
	r1, err := newTestGenerator(t, m1, tok).Extend(context.Background(),
		&Request{SeedText: "w20 w21 w22 the quick brown w30", Words: 4, Temperature: 1, Seed: 5}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	r2, err := newTestGenerator(t, m2, tok).Extend(context.Background(),
		&Request{SeedText: "w44 the quick brown w30", Words: 4, Temperature: 1, Seed: 5}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}

	if !reflect.DeepEqual(m1.windows[0], []int{1, 2, 3, 30}) {
		t.Fatalf("expected last 4 ids, got %v", m1.windows[0])
	}
	if !reflect.DeepEqual(m1.windows, m2.windows) {
		t.Fatalf("tokens before the window changed the input: %v vs %v", m1.windows, m2.windows)
	}
	if !reflect.DeepEqual(r1.Generated, r2.Generated) {
		t.Fatalf("predictions differ: %v vs %v", r1.Generated, r2.Generated)
	}
}

func TestExtendDropsUnknownSeedWords(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 5, width: 51, next: func(int, []int) ([]float32, error) {
		return peaked(51, 4), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{SeedText: "the zebra quick", Words: 1, Temperature: 1, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if !reflect.DeepEqual(m.windows[0], []int{0, 0, 0, 1, 2}) {
		t.Fatalf("unexpected window: %v", m.windows[0])
	}
	if res.Text != "the zebra quick w4" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestExtendDeterministicWithSeed(t *testing.T) {
	t.Parallel()
	tok := fiftyWordVocab(t)
	run := func(seed int64) *Result {
		m := &stubModel{window: 6, width: 51, next: func(int, []int) ([]float32, error) {
			return uniform(51), nil
		}}
		res, err := newTestGenerator(t, m, tok).Extend(context.Background(),
			&Request{SeedText: "the quick", Words: 25, Temperature: 1.3, Seed: seed}, nil)
		if err != nil {
			t.Fatalf("Extend: %v", err)
		}
		return res
	}

	a, b := run(1234), run(1234)
	if a.Text != b.Text {
		t.Fatalf("same seed produced different text:\n%s\n%s", a.Text, b.Text)
	}
	if len(a.Generated) != 25 || a.StopReason != StopBudget {
		t.Fatalf("expected full budget, got %d (%s)", len(a.Generated), a.StopReason)
	}
	if got := len(strings.Fields(a.Text)) - 2; got != 25 {
		t.Fatalf("expected 25 generated tokens in text, got %d", got)
	}
	for _, w := range a.Generated {
		if w == "" {
			t.Fatal("generated an empty token")
		}
	}
	if c := run(99); c.Text == a.Text {
		t.Fatalf("different seeds produced identical text %q", c.Text)
	}
}

func TestExtendClockSeed(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 2, width: 51, next: func(int, []int) ([]float32, error) {
		return uniform(51), nil
	}}
	res, err := newTestGenerator(t, m, fiftyWordVocab(t)).Extend(context.Background(),
		&Request{SeedText: "the", Words: 1, Temperature: 1, Seed: -1}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.Seed < 0 {
		t.Fatalf("expected effective seed, got %d", res.Seed)
	}
}

func TestExtendInferenceErrorReturnsPartial(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(call int, _ []int) ([]float32, error) {
		if call == 2 {
			return nil, errors.New("forced predict failure")
		}
		return peaked(51, 6), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{SeedText: "the", Words: 5, Temperature: 1, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("expected partial result without error, got %v", err)
	}
	if res.Text != "the w6 w6" || res.StopReason != StopInferenceError {
		t.Fatalf("unexpected result: %q %s", res.Text, res.StopReason)
	}
}

func TestExtendConvertsPredictPanic(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(int, []int) ([]float32, error) {
		panic("boom")
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{SeedText: "the", Words: 2, Temperature: 1, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.StopReason != StopInferenceError || res.Text != "the" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExtendWrongOutputWidthStops(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(int, []int) ([]float32, error) {
		return peaked(10, 4), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{SeedText: "the", Words: 2, Temperature: 1, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.StopReason != StopInferenceError {
		t.Fatalf("unexpected stop reason: %s", res.StopReason)
	}
}

func TestExtendCancellation(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(int, []int) ([]float32, error) {
		return peaked(51, 8), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var streamed []string
	res, err := g.Extend(ctx, &Request{SeedText: "the", Words: 10, Temperature: 1, Seed: 1}, func(tok string) {
		streamed = append(streamed, tok)
		cancel()
	})
	if !errors.Is(err, context.Canceled) || !IsCancelled(err) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil || res.StopReason != StopCancelled || res.Text != "the w8" {
		t.Fatalf("unexpected partial result: %+v", res)
	}
	if !reflect.DeepEqual(streamed, []string{"w8"}) {
		t.Fatalf("unexpected streamed tokens: %v", streamed)
	}
}

func TestExtendWithoutPaddingClass(t *testing.T) {
	t.Parallel()
	// Width V: output index i is id i+1.
	m := &stubModel{window: 3, width: 50, next: func(int, []int) ([]float32, error) {
		return peaked(50, 0), nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))
	if g.Handle.Info.PadModeled {
		t.Fatal("expected padding class to be absent")
	}

	res, err := g.Extend(context.Background(), &Request{SeedText: "quick", Words: 2, Temperature: 0.5, Seed: 1}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if res.Text != "quick the the" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestExtendNeverSamplesPadding(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51, next: func(int, []int) ([]float32, error) {
		p := make([]float32, 51)
		p[0] = 0.99
		p[12] = 0.01
		return p, nil
	}}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	res, err := g.Extend(context.Background(), &Request{SeedText: "the", Words: 20, Temperature: 1, Seed: 8}, nil)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if len(res.Generated) != 20 {
		t.Fatalf("expected 20 tokens, got %d (%s)", len(res.Generated), res.StopReason)
	}
	for _, w := range res.Generated {
		if w != "w12" {
			t.Fatalf("unexpected token %q", w)
		}
	}
}

func TestExtendRejectsNegativeBudget(t *testing.T) {
	t.Parallel()
	m := &stubModel{window: 3, width: 51}
	g := newTestGenerator(t, m, fiftyWordVocab(t))

	_, err := g.Extend(context.Background(), &Request{SeedText: "the", Words: -1, Temperature: 1}, nil)
	if !errors.Is(err, ErrWordBudget) || !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrWordBudget, got %v", err)
	}
}

func TestNewHandleChecksWidth(t *testing.T) {
	t.Parallel()
	tok := fiftyWordVocab(t)
	for _, width := range []int{49, 52} {
		if _, err := NewHandle(&stubModel{window: 3, width: width}, tok); err == nil {
			t.Fatalf("width %d: expected error", width)
		}
	}
	if _, err := NewHandle(&stubModel{window: 0, width: 51}, tok); err == nil {
		t.Fatal("expected error for missing window")
	}
}

func TestNewHandleSerializesUnsafeModels(t *testing.T) {
	t.Parallel()
	tok := fiftyWordVocab(t)

	h, err := NewHandle(&stubModel{window: 3, width: 51, notSafe: true}, tok)
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	if _, ok := h.Model.(*serialized); !ok {
		t.Fatalf("expected serialized model, got %T", h.Model)
	}

	h, err = NewHandle(&stubModel{window: 3, width: 51}, tok)
	if err != nil {
		t.Fatalf("NewHandle: %v", err)
	}
	if _, ok := h.Model.(*serialized); ok {
		t.Fatal("safe model should not be wrapped")
	}
}

func TestSerializeRunsPredictOneAtATime(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	active, peak := 0, 0
	m := &stubModel{window: 1, width: 2, next: func(int, []int) ([]float32, error) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return []float32{0, 1}, nil
	}}
	s := Serialize(m)
	if Serialize(s) != s {
		t.Fatal("Serialize should not double wrap")
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			if _, err := s.Predict(context.Background(), [][]int{{0}}); err != nil {
				t.Errorf("Predict: %v", err)
			}
		})
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("expected serialized calls, peak concurrency %d", peak)
	}
}

func TestPadWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ids  []int
		w    int
		want []int
	}{
		{nil, 3, []int{0, 0, 0}},
		{[]int{7}, 3, []int{0, 0, 7}},
		{[]int{1, 2, 3}, 3, []int{1, 2, 3}},
		{[]int{1, 2, 3, 4, 5}, 3, []int{3, 4, 5}},
	}
	for _, tc := range tests {
		dst := make([]int, tc.w)
		for i := range dst {
			dst[i] = -9
		}
		padWindow(dst, tc.ids)
		if !reflect.DeepEqual(dst, tc.want) {
			t.Errorf("padWindow(%v, %d) = %v, want %v", tc.ids, tc.w, dst, tc.want)
		}
	}
}
