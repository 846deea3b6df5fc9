// Package completion streams chat completions from a language model.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrProvider marks failures of the completion provider (network, auth, quota, bad stream).
var ErrProvider = errors.New("completion provider error")

// DefaultSystemPrompt is used for plain chat without document context.
const DefaultSystemPrompt = "You are a helpful assistant."

// Prompt is one system instruction and one user message.
type Prompt struct {
	Model  string
	System string
	User   string
}

// Generator starts streaming completions.
type Generator interface {
	Stream(ctx context.Context, prompt Prompt) (Stream, error)
}

// Stream is a finite, single-consumer sequence of text fragments. Recv returns
// io.EOF after the last fragment. Close must be called once the consumer is done,
// even after an error.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// ChatPrompt builds a plain chat prompt.
func ChatPrompt(model, question string) Prompt {
	return Prompt{Model: model, System: DefaultSystemPrompt, User: question}
}

// RAGPrompt builds a prompt that grounds the answer on retrieved document context.
func RAGPrompt(model, context, question string) Prompt {
	system := "You are a helpful assistant that answers questions based on the provided document context.\n" +
		"Use the following context to answer the user's question. If the answer cannot be found in the context,\n" +
		"say that you cannot find the information in the provided document.\n\n" +
		"Context:\n" + context + "\n"
	return Prompt{Model: model, System: system, User: question}
}

// Forward pulls every fragment from s and passes it to emit until the stream ends.
// It stops at the first emit or stream error; fragments already emitted stay emitted.
func Forward(s Stream, emit func(string) error) error {
	for {
		fragment, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := emit(fragment); err != nil {
			return fmt.Errorf("emit fragment: %w", err)
		}
	}
}
