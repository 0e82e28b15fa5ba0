package queue

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"
)

// FileSink is a PersistSink backed by a single append-only file: each
// record is a uint32 length prefix followed by its bytes. Implemented
// with plain os.File operations; a format this simple needs no embedded
// write-ahead-log library.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileSink opens (creating if necessary) the append log at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}

	return &FileSink{path: path, f: f}, nil
}

// Append writes one length-prefixed record.
func (s *FileSink) Append(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data))) //nolint:gosec

	if _, err := s.f.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := s.f.Write(data); err != nil {
		return err
	}

	return nil
}

// Load reads every record currently in the log, in append order.
func (s *FileSink) Load() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out [][]byte
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}

			return nil, err
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		out = append(out, buf)
	}

	return out, nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.f.Close()
}
