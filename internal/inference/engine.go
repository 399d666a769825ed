package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samcharles93/seedtext/internal/logger"
	"github.com/samcharles93/seedtext/internal/logits"
	"github.com/samcharles93/seedtext/internal/model"
	"github.com/samcharles93/seedtext/internal/tokenizer"
)

// Generator runs the sampling loop against a loaded handle. It holds no
// per-request state and may be shared.
type Generator struct {
	Handle *Handle
}

var _ Engine = (*Generator)(nil)

func NewGenerator(h *Handle) *Generator {
	return &Generator{Handle: h}
}

// Extend appends up to req.Words sampled tokens to req.SeedText.
//
// Each step tokenizes the running text (unknown words are dropped), keeps
// the most recent WindowLength ids left-padded with zeros, predicts, applies
// the temperature and draws one id. An id with no token ends generation
// early without error, as does a failing Predict. Cancellation returns the
// partial result together with ctx.Err().
func (g *Generator) Extend(ctx context.Context, req *Request, stream StreamFunc) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if g == nil || g.Handle == nil {
		return nil, fmt.Errorf("model handle is required")
	}
	if req.Words < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrWordBudget, req.Words)
	}

	h := g.Handle
	log := logger.FromContext(ctx)
	seed := req.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}

	var mask []int
	if h.idOffset == 0 {
		mask = []int{tokenizer.PadID}
	}
	sampler := logits.NewSampler(logits.SamplerConfig{
		Seed:        seed,
		Temperature: req.Temperature,
		MaskIDs:     mask,
	})

	tok := h.Tokenizer
	vocab := tok.Vocabulary()
	incremental := splitsOnSpace(tok)

	ids, err := safeEncode(tok, req.SeedText)
	if err != nil {
		return nil, fmt.Errorf("encode seed: %w", err)
	}

	var text strings.Builder
	text.WriteString(req.SeedText)
	res := &Result{StopReason: StopBudget, Seed: seed}
	window := make([]int, h.WindowLength)
	start := time.Now()

	finish := func() *Result {
		res.Text = text.String()
		res.Stats.TokensGenerated = len(res.Generated)
		res.Stats.Duration = time.Since(start)
		if res.Stats.Duration.Seconds() > 0 {
			res.Stats.TPS = float64(res.Stats.TokensGenerated) / res.Stats.Duration.Seconds()
		}
		return res
	}

	for step := 0; step < req.Words; step++ {
		if err := ctx.Err(); err != nil {
			res.StopReason = StopCancelled
			return finish(), err
		}
		if !incremental {
			if ids, err = safeEncode(tok, text.String()); err != nil {
				return nil, fmt.Errorf("encode text: %w", err)
			}
		}
		padWindow(window, ids)

		probs, err := safePredict(ctx, h.Model, [][]int{window})
		if err == nil && (len(probs) != 1 || len(probs[0]) != h.Info.OutputWidth) {
			err = fmt.Errorf("model returned %d rows, want 1 row of %d", len(probs), h.Info.OutputWidth)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				res.StopReason = StopCancelled
				return finish(), ctxErr
			}
			log.Warn("inference failed, returning partial text", "step", step, "error", err)
			res.StopReason = StopInferenceError
			break
		}

		idx := sampler.Sample(probs[0])
		id := idx + h.idOffset
		token, ok := vocab.Token(id)
		if idx < 0 || !ok {
			log.Debug("sampled id has no token, stopping early", "step", step, "id", id)
			res.StopReason = StopUnknownToken
			break
		}

		text.WriteByte(' ')
		text.WriteString(token)
		res.Generated = append(res.Generated, token)
		if stream != nil {
			stream(token)
		}

		if incremental {
			more, err := safeEncode(tok, " "+token)
			if err != nil {
				return nil, fmt.Errorf("encode token: %w", err)
			}
			ids = append(ids, more...)
			if n := len(ids); n > 2*h.WindowLength {
				ids = append(ids[:0], ids[n-h.WindowLength:]...)
			}
		}
	}
	return finish(), nil
}

// padWindow fills dst with the last len(dst) ids, left-padding with PadID
// when there are fewer.
func padWindow(dst, ids []int) {
	w := len(dst)
	if len(ids) >= w {
		copy(dst, ids[len(ids)-w:])
		return
	}
	pad := w - len(ids)
	for i := 0; i < pad; i++ {
		dst[i] = tokenizer.PadID
	}
	copy(dst[pad:], ids)
}

// splitsOnSpace reports whether encoding text+" "+token equals encoding
// text followed by encoding " "+token, which lets the loop extend the id
// list instead of re-tokenizing the whole text every step.
func splitsOnSpace(tok *tokenizer.WordTokenizer) bool {
	opts := tok.Options()
	return opts.CharLevel || opts.Split == " "
}

func safePredict(ctx context.Context, m model.Model, batch [][]int) (out [][]float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Predict: %v", rec)
		}
	}()
	return m.Predict(ctx, batch)
}

func safeEncode(tok tokenizer.Tokenizer, text string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(text)
}

// IsCancelled reports whether err came from a cancelled or expired context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
