package transport

import (
	"context"
	"io"
	"os"
	"sync"

	"golang.org/x/exp/jsonrpc2"
)

// compatibility check
var (
	_ jsonrpc2.Listener  = (*Stdio)(nil)
	_ io.ReadWriteCloser = (*stdioConn)(nil)
)

// Stdio implements the jsonrpc2.Listener over a single reader/writer pair, stdin and stdout by default.
//
// The first Accept returns the connection. Later calls block until the connection or the listener is closed.
type Stdio struct {
	in         io.Reader
	out        io.Writer
	acceptOnce sync.Once
	closeOnce  sync.Once
	done       chan struct{}
	writeMu    sync.Mutex
}

// Accept implements the jsonrpc2.Listener#Accept
func (s *Stdio) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	var conn io.ReadWriteCloser
	s.acceptOnce.Do(func() {
		conn = &stdioConn{stdio: s}
	})
	if conn != nil {
		return conn, nil
	}
	select {
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dialer implements the jsonrpc2.Listener#Dialer
//
// Stdio cannot be dialed.
func (s *Stdio) Dialer() jsonrpc2.Dialer {
	return nil
}

// Close closes the input stream, when it is closable, and the listener.
func (s *Stdio) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.in.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

type stdioConn struct {
	stdio *Stdio
}

// Read See: io.Reader#Read
//
// When the input is exhausted the listener stops accepting, so the server exits after in-flight requests.
func (c *stdioConn) Read(p []byte) (int, error) {
	n, err := c.stdio.in.Read(p)
	if err != nil {
		c.stdio.closeOnce.Do(func() {
			close(c.stdio.done)
		})
	}
	return n, err
}

// Write See: io.Writer#Write
func (c *stdioConn) Write(p []byte) (int, error) {
	c.stdio.writeMu.Lock()
	defer c.stdio.writeMu.Unlock()
	return c.stdio.out.Write(p)
}

// Close ends the connection. The listener stops accepting.
func (c *stdioConn) Close() error {
	return c.stdio.Close()
}

type stdioOptions struct {
	in  io.Reader
	out io.Writer
}

// StdioOption options for the Stdio listener.
type StdioOption func(*stdioOptions)

// StdioWithReader sets the reader messages are read from.
func StdioWithReader(r io.Reader) StdioOption {
	return func(o *stdioOptions) {
		o.in = r
	}
}

// StdioWithWriter sets the writer messages are written to.
func StdioWithWriter(w io.Writer) StdioOption {
	return func(o *stdioOptions) {
		o.out = w
	}
}

// NewStdio returns a new Stdio listener.
func NewStdio(options ...StdioOption) *Stdio {
	opts := &stdioOptions{
		in:  os.Stdin,
		out: os.Stdout,
	}
	for _, opt := range options {
		opt(opts)
	}
	return &Stdio{
		in:   opts.in,
		out:  opts.out,
		done: make(chan struct{}),
	}
}
