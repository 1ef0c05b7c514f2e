//go:build !onnx

package onnx

import (
	"context"
	"errors"
)

// ErrUnavailable reports that the binary was built without ONNX support.
var ErrUnavailable = errors.New("onnx: built without onnx support")

// Config configures the ONNX embedder. Fields mirror the onnx build so
// callers compile identically either way.
type Config struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
	Dimensions    int
}

// Embedder is a placeholder in builds without the onnx tag.
type Embedder struct{}

// New always fails so the embedder fallback chain moves on.
func New(Config) (*Embedder, error) {
	return nil, ErrUnavailable
}

// Embed never runs in this build.
func (*Embedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

// Dimensions never runs in this build.
func (*Embedder) Dimensions() int { return 0 }

// Close never runs in this build.
func (*Embedder) Close() error { return nil }
