package ai

import (
	"context"
)

// Document is a binary payload submitted to a generative backend together with an instruction.
type Document struct {
	URI      string
	MIMEType string
	Data     []byte
}

// Generator is a generative backend that answers instructions with free text.
type Generator interface {
	// GenerateText sends the instruction and the input text and returns the textual answer.
	GenerateText(ctx context.Context, instruction, input string) (string, error)
	// GenerateFromDocument sends the instruction together with an inline document.
	GenerateFromDocument(ctx context.Context, instruction string, doc Document) (string, error)
}

// Embedder turns text into a numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Backend is a provider able to both generate and embed.
type Backend interface {
	Generator
	Embedder
	Provider() string
	Model() string
}

// Unavailable is a Backend used when no provider credential is configured.
// Every call fails with an ExternalServiceError wrapping ErrNotConfigured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) GenerateText(context.Context, string, string) (string, error) {
	return "", u.err("generate text")
}

func (u Unavailable) GenerateFromDocument(context.Context, string, Document) (string, error) {
	return "", u.err("generate from document")
}

func (u Unavailable) Embed(context.Context, string) ([]float32, error) {
	return nil, u.err("embed")
}

func (u Unavailable) Provider() string { return "none" }

func (u Unavailable) Model() string { return "" }

func (u Unavailable) err(op string) error {
	return &ExternalServiceError{Service: "ai", Op: op, Err: ErrNotConfigured, Detail: u.Reason}
}
