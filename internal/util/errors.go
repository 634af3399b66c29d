package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in inputs")
	ErrUnsafePath        = errors.New("path escapes its root")
)
