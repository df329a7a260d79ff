package record

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink receives batches of records from a Log.
type Sink interface {
	Write(batch []Record) error
	Close() error
}

// csvFile is one open output file.
type csvFile struct {
	file   *os.File
	writer *csv.Writer
	empty  bool // header still pending
}

// CSVSink appends records to <dir>/<replay>-<Kind>.csv, one file per replay and kind.
// A header row is written only when the file is empty, so restarts keep appending.
type CSVSink struct {
	dir   string
	mu    sync.Mutex
	files map[string]*csvFile
}

// NewCSVSink creates the output directory if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &CSVSink{dir: dir, files: make(map[string]*csvFile)}, nil
}

// Path returns the file a record of the given replay and kind is written to.
func (s *CSVSink) Path(replay string, kind Kind) string {
	if replay == "" {
		replay = "unnamed"
	}
	return filepath.Join(s.dir, replay+"-"+kind.String()+".csv")
}

// Write appends a batch and flushes every touched file.
func (s *CSVSink) Write(batch []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[*csvFile]struct{})
	for _, rec := range batch {
		f, err := s.open(s.Path(rec.Replay(), rec.Kind()))
		if err != nil {
			return err
		}
		if f.empty {
			if err := f.writer.Write(rec.Header()); err != nil {
				return fmt.Errorf("write csv header: %w", err)
			}
			f.empty = false
		}
		if err := f.writer.Write(rec.Row()); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		touched[f] = struct{}{}
	}

	for f := range touched {
		f.writer.Flush()
		if err := f.writer.Error(); err != nil {
			return fmt.Errorf("flush %s: %w", f.file.Name(), err)
		}
	}
	return nil
}

func (s *CSVSink) open(path string) (*csvFile, error) {
	if f, ok := s.files[path]; ok {
		return f, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f := &csvFile{
		file:   file,
		writer: csv.NewWriter(file),
		empty:  info.Size() == 0,
	}
	s.files[path] = f
	return f, nil
}

// Close flushes and closes every open file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for path, f := range s.files {
		f.writer.Flush()
		if err := f.writer.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := f.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, path)
	}
	return firstErr
}
