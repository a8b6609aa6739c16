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
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTransport_SendReceive(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"ping","id":1}` + "\n")
	var out bytes.Buffer
	tr := NewLineTransport(in, &out)

	msg, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"ping","id":1}`, string(msg))

	require.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)))
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{}}`+"\n", out.String())
}

func TestLineTransport_SkipsBlankAndCRLF(t *testing.T) {
	in := strings.NewReader("\n   \n{\"a\":1}\r\n\r\n{\"b\":2}")
	tr := NewLineTransport(in, io.Discard)

	first, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))

	second, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(second), "a final unterminated line is still a message")

	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineTransport_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	tr := NewLineTransport(pr, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The reader goroutine survives and delivers later input.
	go func() { _, _ = pw.Write([]byte("{\"late\":true}\n")) }()
	msg, err := tr.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"late":true}`, string(msg))
}

func TestLineTransport_Closed(t *testing.T) {
	tr := NewLineTransport(strings.NewReader("{}\n"), io.Discard)
	require.NoError(t, tr.Close())

	_, err := tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, tr.Send(context.Background(), []byte("{}")), ErrClosed)
}

func TestLineTransport_RejectsEmbeddedNewline(t *testing.T) {
	var out bytes.Buffer
	tr := NewLineTransport(strings.NewReader(""), &out)
	assert.Error(t, tr.Send(context.Background(), []byte("{\n}")))
	assert.Empty(t, out.String())
}

func TestLineTransport_LineTooLong(t *testing.T) {
	huge := strings.Repeat("x", MaxLineSize+1) + "\n"
	tr := NewLineTransport(strings.NewReader(huge), io.Discard)

	_, err := tr.Receive(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestLineTransport_ConcurrentSend(t *testing.T) {
	var out bytes.Buffer
	tr := NewLineTransport(strings.NewReader(""), &out)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`)))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 20)
	for _, l := range lines {
		assert.Equal(t, `{"jsonrpc":"2.0","method":"notifications/progress"}`, l)
	}
}
