package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StdoutSubmitter writes each payload as a JSON line to an io.Writer
// (os.Stdout in production), grounded on the original connections
// module's stdout submitter.
type StdoutSubmitter struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

// NewStdoutSubmitter returns a Submitter that writes JSON lines to w.
func NewStdoutSubmitter(name string, w io.Writer) *StdoutSubmitter {
	return &StdoutSubmitter{name: name, w: w}
}

func (s *StdoutSubmitter) Name() string { return s.name }

func (s *StdoutSubmitter) Submit(_ context.Context, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: stdout: encode payload: %w", err)
	}
	if _, err := s.w.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("transport: stdout: write: %w", err)
	}
	return nil
}

func (s *StdoutSubmitter) Close() error { return nil }
