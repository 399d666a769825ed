package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type StreamMode string

const (
	StreamInstant    StreamMode = "instant"
	StreamSmooth     StreamMode = "smooth"
	StreamTypewriter StreamMode = "typewriter"
	StreamQuiet      StreamMode = "quiet"
)

func parseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return StreamInstant, nil
	case StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet:
		return m, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (instant, smooth, typewriter, quiet)", s)
	}
}

// StreamWriter prints generated words as they arrive. Each word is
// preceded by a single space, matching how the generator joins them.
type StreamWriter struct {
	mode   StreamMode
	buffer *bufio.Writer

	mu            sync.Mutex
	batch         strings.Builder
	batchWords    int
	lastFlush     time.Time
	flushInterval time.Duration
	batchSize     int // flush after N words

	accumulator strings.Builder
	delay       time.Duration
}

func NewStreamWriter(mode StreamMode, out io.Writer) *StreamWriter {
	return &StreamWriter{
		mode:          mode,
		buffer:        bufio.NewWriterSize(out, 4096),
		flushInterval: 50 * time.Millisecond,
		batchSize:     5,
		lastFlush:     time.Now(),
		delay:         15 * time.Millisecond,
	}
}

// Start prints the seed text the words will be appended to.
func (w *StreamWriter) Start(seed string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.accumulator.WriteString(seed)
	if w.mode == StreamQuiet {
		return
	}
	_, _ = w.buffer.WriteString(seed)
	_ = w.buffer.Flush()
}

// Write handles a single generated word.
func (w *StreamWriter) Write(word string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	piece := " " + word
	w.accumulator.WriteString(piece)
	switch w.mode {
	case StreamInstant:
		_, _ = w.buffer.WriteString(piece)
		_ = w.buffer.Flush()
	case StreamSmooth:
		w.batch.WriteString(piece)
		w.batchWords++
		if w.batchWords >= w.batchSize || time.Since(w.lastFlush) >= w.flushInterval {
			w.flushBatch()
		}
	case StreamTypewriter:
		for _, r := range piece {
			_, _ = w.buffer.WriteRune(r)
			_ = w.buffer.Flush()
			if w.delay > 0 {
				time.Sleep(w.delay)
			}
		}
	}
}

// Flush writes anything still buffered, ends the line and returns the full
// text.
func (w *StreamWriter) Flush() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	text := w.accumulator.String()
	switch w.mode {
	case StreamQuiet:
		_, _ = w.buffer.WriteString(text)
	case StreamSmooth:
		w.flushBatch()
	}
	_, _ = w.buffer.WriteString("\n")
	_ = w.buffer.Flush()
	return text
}

// flushBatch writes the pending batch (must hold lock).
func (w *StreamWriter) flushBatch() {
	if w.batch.Len() == 0 {
		return
	}
	_, _ = w.buffer.WriteString(w.batch.String())
	_ = w.buffer.Flush()
	w.batch.Reset()
	w.batchWords = 0
	w.lastFlush = time.Now()
}
