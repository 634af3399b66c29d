package util

import (
	"strings"
	"testing"
)

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ChunkText(text, 10, 2)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0] != "abcdefghij" {
		t.Fatalf("unexpected first chunk: %s", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "ij") {
		t.Fatalf("expected overlap with previous chunk, got %s", chunks[1])
	}
}

func TestChunkTextBreaksOnWhitespace(t *testing.T) {
	chunks := ChunkText("alpha beta gamma delta", 12, 0)
	if chunks[0] != "alpha beta" {
		t.Fatalf("unexpected first chunk: %q", chunks[0])
	}
	if strings.Join(chunks, " ") != "alpha beta gamma delta" {
		t.Fatalf("chunks lost text: %q", chunks)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("   ", 10, 0); len(got) != 0 {
		t.Fatalf("expected no chunks, got %q", got)
	}
}
