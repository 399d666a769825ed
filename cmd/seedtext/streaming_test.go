package main

import (
	"bytes"
	"testing"
)

func TestStreamWriterModes(t *testing.T) {
	for _, mode := range []StreamMode{StreamInstant, StreamSmooth, StreamTypewriter, StreamQuiet} {
		t.Run(string(mode), func(t *testing.T) {
			var out bytes.Buffer
			w := NewStreamWriter(mode, &out)
			w.delay = 0
			w.Start("the quick")
			for _, word := range []string{"brown", "fox", "jumps"} {
				w.Write(word)
			}
			text := w.Flush()
			if text != "the quick brown fox jumps" {
				t.Fatalf("Flush() = %q", text)
			}
			if out.String() != text+"\n" {
				t.Fatalf("output = %q", out.String())
			}
		})
	}
}

func TestStreamWriterQuietHoldsOutput(t *testing.T) {
	var out bytes.Buffer
	w := NewStreamWriter(StreamQuiet, &out)
	w.Start("seed")
	w.Write("word")
	if out.Len() != 0 {
		t.Fatalf("quiet mode wrote early: %q", out.String())
	}
	w.Flush()
	if out.String() != "seed word\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestParseStreamMode(t *testing.T) {
	if m, err := parseStreamMode(""); err != nil || m != StreamInstant {
		t.Fatalf("empty: %v %v", m, err)
	}
	if m, err := parseStreamMode(" Smooth "); err != nil || m != StreamSmooth {
		t.Fatalf("smooth: %v %v", m, err)
	}
	if _, err := parseStreamMode("fast"); err == nil {
		t.Fatal("expected error")
	}
}
