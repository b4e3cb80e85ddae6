package extraction

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// PlainText is a recognizer that treats the uploaded bytes as UTF-8 text.
// It backs local development and tests; production deployments plug in an
// OCR-backed ports.Recognizer instead.
type PlainText struct{}

func NewPlainText() *PlainText {
	return &PlainText{}
}

func (PlainText) Recognize(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	return string(data), nil
}
