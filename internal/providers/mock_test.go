package providers

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMockGenerateNeverFails(t *testing.T) {
	m := NewMockAdapter()

	resp, err := m.Generate(context.Background(), GenerateRequest{Prompt: "hello"})
	if err != nil {
		t.Fatalf("mock generate returned error: %v", err)
	}
	if !strings.Contains(resp.Content, "hello") {
		t.Errorf("expected response to echo prompt, got %q", resp.Content)
	}
	if resp.Model != "mock:echo" {
		t.Errorf("expected model mock:echo, got %q", resp.Model)
	}
}

func TestMockGenerateEmptyPrompt(t *testing.T) {
	m := NewMockAdapter()

	resp, err := m.Generate(context.Background(), GenerateRequest{Prompt: "   "})
	if err != nil {
		t.Fatalf("mock generate returned error: %v", err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty response for empty prompt")
	}
}

func TestMockStreamReassembles(t *testing.T) {
	m := NewMockAdapter()

	stream, err := m.Stream(context.Background(), GenerateRequest{Prompt: "stream me"})
	if err != nil {
		t.Fatalf("mock stream returned error: %v", err)
	}

	var assembled strings.Builder
	sawDone := false
	for chunk := range stream {
		assembled.WriteString(chunk.Content)
		if chunk.Done {
			sawDone = true
		}
	}

	if !sawDone {
		t.Error("stream ended without a done chunk")
	}

	full, err := m.Generate(context.Background(), GenerateRequest{Prompt: "stream me"})
	if err != nil {
		t.Fatalf("mock generate returned error: %v", err)
	}
	if assembled.String() != full.Content {
		t.Errorf("streamed content %q does not match generated content %q", assembled.String(), full.Content)
	}
}

func TestMockStreamCancellation(t *testing.T) {
	m := NewMockAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := m.Stream(ctx, GenerateRequest{Prompt: "a b c d e f g h"})
	if err != nil {
		t.Fatalf("mock stream returned error: %v", err)
	}

	<-stream
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancellation")
		}
	}
}

func TestMockEmbeddingsDeterministic(t *testing.T) {
	m := NewMockAdapter()

	a, err := m.Embeddings(context.Background(), "same text")
	if err != nil {
		t.Fatalf("embeddings returned error: %v", err)
	}
	b, err := m.Embeddings(context.Background(), "same text")
	if err != nil {
		t.Fatalf("embeddings returned error: %v", err)
	}

	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("expected matching non-empty vectors, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}
