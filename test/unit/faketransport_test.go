package unit

import (
	"io"
	"net"
	"sync"
)

// fakeTransport is an in-memory Transport for driving sessions without
// sockets. Reads block on a channel until lines are fed or the transport is
// closed; writes are recorded for inspection.
type fakeTransport struct {
	mu      sync.Mutex
	written []string
	closes  int
	addr    string

	incoming chan string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		addr:     "fake:0",
		incoming: make(chan string, 16),
	}
}

func (f *fakeTransport) ReadLine() (string, error) {
	line, ok := <-f.incoming
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (f *fakeTransport) WriteLine(line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closes > 0 {
		return net.ErrClosed
	}
	f.written = append(f.written, line)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closes == 1 {
		close(f.incoming)
	}
	return nil
}

func (f *fakeTransport) RemoteAddr() string {
	return f.addr
}

// feed queues a line for the next ReadLine.
func (f *fakeTransport) feed(line string) {
	f.incoming <- line
}

// lines returns a snapshot of everything written so far.
func (f *fakeTransport) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

// closeCount reports how many times Close was invoked.
func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}
