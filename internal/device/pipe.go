package device

import (
	"strings"
	"sync"
	"time"
)

const pipeDepth = 64

// PipeDevice is one end of an in-memory line link. It stands in for the
// serial port in the simulator's loopback mode and in tests.
type PipeDevice struct {
	in   <-chan string
	out  chan<- string
	done chan struct{}
	peer <-chan struct{}
	once sync.Once
}

// NewPipe returns two connected ends: lines written to one are read from the other.
func NewPipe() (*PipeDevice, *PipeDevice) {
	ab := make(chan string, pipeDepth)
	ba := make(chan string, pipeDepth)
	a := &PipeDevice{in: ba, out: ab, done: make(chan struct{})}
	b := &PipeDevice{in: ab, out: ba, done: make(chan struct{})}
	a.peer, b.peer = b.done, a.done
	return a, b
}

// ReadLine returns the next line written by the peer.
func (p *PipeDevice) ReadLine(timeout time.Duration) (string, error) {
	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case line := <-p.in:
		return line, nil
	default:
	}

	select {
	case line := <-p.in:
		return line, nil
	case <-p.done:
		return "", ErrClosed
	case <-p.peer:
		return "", ErrClosed
	case <-expire:
		return "", ErrReadTimeout
	}
}

// WriteLine sends s to the peer. Embedded line-feeds split it into several lines.
func (p *PipeDevice) WriteLine(s string) error {
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		line = strings.TrimSuffix(line, "\r")
		select {
		case <-p.done:
			return ErrClosed
		case <-p.peer:
			return ErrClosed
		default:
		}
		select {
		case p.out <- line:
		case <-p.done:
			return ErrClosed
		case <-p.peer:
			return ErrClosed
		}
	}
	return nil
}

// Close closes this end; the peer sees ErrClosed on its next blocking call.
func (p *PipeDevice) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
