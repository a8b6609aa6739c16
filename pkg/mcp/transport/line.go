// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MaxLineSize bounds a single framed message.
const MaxLineSize = 10 * 1024 * 1024

type lineRead struct {
	data []byte
	err  error
}

// LineTransport frames one JSON-RPC message per line over a reader/writer
// pair, typically stdin and stdout of a desktop client's subprocess.
//
// A single reader goroutine is started on first Receive and lives until the
// reader fails, so a cancelled Receive never leaks a blocked read.
type LineTransport struct {
	scanner *bufio.Scanner
	out     *bufio.Writer

	mu     sync.Mutex // guards out and closed
	closed bool

	lines chan lineRead
	once  sync.Once
}

// NewLineTransport creates a transport reading r and writing w.
func NewLineTransport(r io.Reader, w io.Writer) *LineTransport {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &LineTransport{
		scanner: sc,
		out:     bufio.NewWriter(w),
		lines:   make(chan lineRead, 1),
	}
}

func (t *LineTransport) start() {
	t.once.Do(func() {
		go func() {
			defer close(t.lines)
			for t.scanner.Scan() {
				line := bytes.TrimRight(t.scanner.Bytes(), "\r")
				if len(bytes.TrimSpace(line)) == 0 {
					continue
				}
				// Scanner reuses its buffer.
				msg := make([]byte, len(line))
				copy(msg, line)
				t.lines <- lineRead{data: msg}
			}
			err := t.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			t.lines <- lineRead{err: err}
		}()
	})
}

// Receive returns the next non-blank line without its terminator.
func (t *LineTransport) Receive(ctx context.Context) ([]byte, error) {
	if t.isClosed() {
		return nil, ErrClosed
	}
	t.start()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r, ok := <-t.lines:
		if !ok {
			return nil, io.EOF
		}
		if r.err == io.EOF {
			return nil, io.EOF
		}
		if r.err != nil {
			return nil, fmt.Errorf("read message: %w", r.err)
		}
		return r.data, nil
	}
}

// Send writes message followed by a newline and flushes.
func (t *LineTransport) Send(_ context.Context, message []byte) error {
	if bytes.IndexByte(message, '\n') >= 0 {
		return fmt.Errorf("message contains a newline")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if _, err := t.out.Write(message); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := t.out.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := t.out.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close marks the transport closed. The underlying streams are left open
// since they are usually the process's stdin and stdout.
func (t *LineTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *LineTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
