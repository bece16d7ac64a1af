package common

import (
	"fmt"
	"os"
)

// WithTempFile writes data to a uniquely named temp file, calls fn with its
// path and removes the file on every exit path, including panics in fn.
func WithTempFile(pattern string, data []byte, fn func(path string) error) error {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	return fn(path)
}
