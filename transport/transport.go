// Package transport provides the jsonrpc2 listeners the weather MCP server can be served over.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/exp/jsonrpc2"
)

// maxMessageBytes caps a single inbound JSON-RPC message.
const maxMessageBytes = 1 << 20

// DefaultStdioFramer returns the framer for the stdio transport.
//
// Messages are separated by '\n' in both directions.
func DefaultStdioFramer() jsonrpc2.Framer {
	return &lineFramer{delimiter: messageDelimiter}
}

// DefaultSSEFramer returns the framer for the SSE transport.
//
// Inbound messages are separated by '\n'. Outbound messages are written one per Write so the
// session can wrap each in its own event.
func DefaultSSEFramer() jsonrpc2.Framer {
	return &lineFramer{}
}

var (
	// messageDelimiter is the delimiter used to separate messages in the stdio transport.
	messageDelimiter = []byte{'\n'}
)

// compatibility check
var _ jsonrpc2.Framer = (*lineFramer)(nil)

// lineFramer reads newline-delimited messages and writes each message in a single Write.
type lineFramer struct {
	delimiter []byte
}

// Reader See: jsonrpc2.Framer#Reader
func (f *lineFramer) Reader(r io.Reader) jsonrpc2.Reader {
	return &lineReader{
		r: bufio.NewReaderSize(r, 64*1024),
	}
}

// Writer See: jsonrpc2.Framer#Writer
func (f *lineFramer) Writer(w io.Writer) jsonrpc2.Writer {
	return &messageWriter{
		w:         w,
		delimiter: f.delimiter,
	}
}

// compatibility check
var _ jsonrpc2.Reader = (*lineReader)(nil)

type lineReader struct {
	r *bufio.Reader
}

// Read See: jsonrpc2.Reader#Read
//
// Lines that are not valid JSON-RPC messages are logged and skipped; they do not end the connection.
func (l *lineReader) Read(ctx context.Context) (jsonrpc2.Message, int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return nil, total, ctx.Err()
		default:
			// no-op
		}
		line, n, err := l.readLine()
		total += n
		if line == nil && n > maxMessageBytes {
			slog.WarnContext(ctx, "[weathermcp] message too large, skipped", slog.Int64("bytes", n))
		}
		if line = bytes.TrimSpace(line); len(line) > 0 {
			msg, decodeErr := jsonrpc2.DecodeMessage(line)
			if decodeErr == nil {
				return msg, total, nil
			}
			slog.WarnContext(ctx, "[weathermcp] invalid message, skipped", slog.Any("error", decodeErr))
		}
		if err != nil {
			return nil, total, err
		}
	}
}

// readLine reads up to and including the next '\n' and reports the bytes consumed.
// At most maxMessageBytes are held in memory; a longer line is drained and returned as nil.
func (l *lineReader) readLine() ([]byte, int64, error) {
	var (
		line []byte
		n    int64
	)
	for {
		chunk, err := l.r.ReadSlice('\n')
		n += int64(len(chunk))
		if n <= maxMessageBytes {
			line = append(line, chunk...)
		} else {
			line = nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, n, err
	}
}

// compatibility check
var _ jsonrpc2.Writer = (*messageWriter)(nil)

type messageWriter struct {
	w         io.Writer
	delimiter []byte
}

// Write See: jsonrpc2.Writer#Write
func (m *messageWriter) Write(_ context.Context, message jsonrpc2.Message) (int64, error) {
	data, err := jsonrpc2.EncodeMessage(message)
	if err != nil {
		return 0, err
	}
	data = append(data, m.delimiter...)
	n, err := m.w.Write(data)
	return int64(n), err
}
