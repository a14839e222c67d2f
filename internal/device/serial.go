package device

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	serial "go.bug.st/serial"
)

const readChunk = 256

// SerialDevice implements Device using go.bug.st/serial.
// Reads and writes may run concurrently; partial lines survive a read timeout.
type SerialDevice struct {
	port   serial.Port
	dev    string
	closed atomic.Bool

	readMu  sync.Mutex
	pending []byte

	writeMu sync.Mutex
}

// NewSerialDevice creates and opens a serial device with the given path and baudrate.
func NewSerialDevice(dev string, baud int) (*SerialDevice, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	return &SerialDevice{port: p, dev: dev}, nil
}

// Close closes the underlying serial connection.
func (s *SerialDevice) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.port.Close()
}

// ReadLine reads a single line from the serial port, blocking until newline or timeout.
func (s *SerialDevice) ReadLine(timeout time.Duration) (string, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	if line, ok := s.takeLine(); ok {
		return line, nil
	}
	if s.closed.Load() {
		return "", ErrClosed
	}

	rt := serial.NoTimeout
	var deadline time.Time
	if timeout > 0 {
		rt = timeout
		deadline = time.Now().Add(timeout)
	}
	if err := s.port.SetReadTimeout(rt); err != nil {
		return "", fmt.Errorf("serial %s: set read timeout: %w", s.dev, err)
	}

	buf := make([]byte, readChunk)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			s.pending = append(s.pending, buf[:n]...)
			if line, ok := s.takeLine(); ok {
				return line, nil
			}
		}
		if err != nil {
			if s.closed.Load() {
				return "", ErrClosed
			}
			return "", fmt.Errorf("serial %s: read: %w", s.dev, err)
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return "", ErrReadTimeout
		}
	}
}

func (s *SerialDevice) takeLine() (string, bool) {
	i := bytes.IndexByte(s.pending, '\n')
	if i < 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(s.pending[:i], []byte{'\r'}))
	s.pending = s.pending[i+1:]
	return line, true
}

// WriteLine writes a single line followed by '\n' to the serial port.
func (s *SerialDevice) WriteLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.port.Write(append([]byte(line), '\n')); err != nil {
		return fmt.Errorf("serial %s: write: %w", s.dev, err)
	}
	return nil
}
