// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"errors"
	"io"
	"sync"
)

// ErrNoData is returned by ReadByte when no byte is buffered
var ErrNoData = errors.New("vedirect: no data available")

// ErrSourceClosed is returned after the source was closed
var ErrSourceClosed = errors.New("vedirect: source closed")

// ReaderSource adapts a blocking io.Reader (serial port, WebSocket) into a
// ByteSource. A background goroutine reads chunks into a bounded queue.
type ReaderSource struct {
	chunks  chan []byte
	pending []byte
	done    chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

// NewReaderSource starts reading r in the background.
// queue is the number of chunks buffered before the reader blocks.
func NewReaderSource(r io.Reader, queue int) *ReaderSource {
	if queue <= 0 {
		queue = 64
	}
	s := &ReaderSource{
		chunks: make(chan []byte, queue),
		done:   make(chan struct{}),
	}
	go s.readLoop(r)
	return s
}

func (s *ReaderSource) readLoop(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 128)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case s.chunks <- data:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.setErr(err)
			return
		}
	}
}

func (s *ReaderSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Available reports whether a byte is buffered
func (s *ReaderSource) Available() bool {
	if len(s.pending) > 0 {
		return true
	}
	select {
	case data, ok := <-s.chunks:
		if !ok {
			return false
		}
		s.pending = data
		return len(s.pending) > 0
	default:
		return false
	}
}

// ReadByte returns the next buffered byte without blocking
func (s *ReaderSource) ReadByte() (byte, error) {
	if !s.Available() {
		if err := s.Err(); err != nil {
			return 0, err
		}
		return 0, ErrNoData
	}
	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, nil
}

// Err returns the error that stopped the background reader, if any
func (s *ReaderSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the background reader. The underlying reader is not closed;
// a reader blocked in Read only returns once its owner closes it.
func (s *ReaderSource) Close() {
	s.once.Do(func() {
		close(s.done)
		s.setErr(ErrSourceClosed)
	})
}
