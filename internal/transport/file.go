package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileQueue is a newline-delimited-JSON file used as both a Receiver
// (reading sequentially from the start) and a Submitter (appending),
// grounded on the original connections module's FileEventQueue: one
// file, a buffered reader and a buffered, append-mode writer.
type FileQueue struct {
	name string
	path string

	readMu sync.Mutex
	reader *bufio.Reader
	rf     *os.File

	writeMu sync.Mutex
	writer  *bufio.Writer
	wf      *os.File
}

// OpenFileQueue opens (creating if absent) path for append and for
// sequential read.
func OpenFileQueue(name, path string) (*FileQueue, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if createErr != nil {
			return nil, fmt.Errorf("transport: file: create %s: %w", path, createErr)
		}
		f.Close()
	}

	rf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transport: file: open for read %s: %w", path, err)
	}
	wf, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		rf.Close()
		return nil, fmt.Errorf("transport: file: open for append %s: %w", path, err)
	}

	return &FileQueue{
		name:   name,
		path:   path,
		reader: bufio.NewReader(rf),
		rf:     rf,
		writer: bufio.NewWriter(wf),
		wf:     wf,
	}, nil
}

func (q *FileQueue) Name() string { return q.name }

// ReceiveOne reads the next JSON line. It returns ErrStreamFinished at
// EOF; callers that want to poll for new lines should treat that as
// "nothing right now" and retry later rather than as a fatal error.
func (q *FileQueue) ReceiveOne(_ context.Context) (any, func(), error) {
	q.readMu.Lock()
	defer q.readMu.Unlock()

	line, err := q.reader.ReadBytes('\n')
	if len(line) == 0 && err == io.EOF {
		return nil, nil, ErrStreamFinished
	}
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("transport: file: read: %w", err)
	}

	var payload any
	if unmarshalErr := json.Unmarshal(line, &payload); unmarshalErr != nil {
		return nil, nil, fmt.Errorf("transport: file: decode line: %w", unmarshalErr)
	}
	return payload, func() {}, nil
}

func (q *FileQueue) Submit(_ context.Context, payload any) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: file: encode payload: %w", err)
	}
	if _, err := q.writer.Write(encoded); err != nil {
		return fmt.Errorf("transport: file: write: %w", err)
	}
	if err := q.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("transport: file: write: %w", err)
	}
	return q.writer.Flush()
}

func (q *FileQueue) Close() error {
	q.readMu.Lock()
	q.rf.Close()
	q.readMu.Unlock()

	q.writeMu.Lock()
	defer q.writeMu.Unlock()
	if err := q.writer.Flush(); err != nil {
		q.wf.Close()
		return err
	}
	return q.wf.Close()
}
