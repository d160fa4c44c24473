package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"example.com/ltvpipeline/internal/ltv"
)

// StdStream selects stdin for input or stdout for output.
const StdStream = "-"

// ReadEvents loads the input JSON array. Elements stay raw so one malformed
// event only rejects that event.
func ReadEvents(path string) ([]json.RawMessage, error) {
	var r io.Reader = os.Stdin
	if path != StdStream {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return DecodeEvents(r)
}

func DecodeEvents(r io.Reader) ([]json.RawMessage, error) {
	var events []json.RawMessage
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return events, nil
}

// WriteTop writes the ranked pairs as a JSON array, creating parent
// directories as needed.
func WriteTop(path string, top []ltv.Ranked) error {
	if top == nil {
		top = []ltv.Ranked{}
	}
	if path == StdStream {
		return EncodeTop(os.Stdout, top)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := EncodeTop(f, top); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func EncodeTop(w io.Writer, top []ltv.Ranked) error {
	if err := json.NewEncoder(w).Encode(top); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
