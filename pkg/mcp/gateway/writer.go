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

package gateway

import (
	"net/http"
	"strconv"
)

// ResponseWriter is the only surface request handling uses to produce a
// response. Committed reports whether the status line has gone out, after
// which headers and status can no longer change.
type ResponseWriter interface {
	SetHeader(key, value string)
	WriteJSON(status int, body []byte) error
	WriteStatus(status int)
	Committed() bool
}

// httpResponseWriter tracks commitment of an http.ResponseWriter. It also
// satisfies http.ResponseWriter and http.Flusher so streaming handlers can
// write through it.
type httpResponseWriter struct {
	w         http.ResponseWriter
	status    int
	committed bool
}

func newResponseWriter(w http.ResponseWriter) *httpResponseWriter {
	return &httpResponseWriter{w: w}
}

func (rw *httpResponseWriter) SetHeader(key, value string) {
	rw.w.Header().Set(key, value)
}

func (rw *httpResponseWriter) WriteJSON(status int, body []byte) error {
	h := rw.w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	rw.WriteHeader(status)
	_, err := rw.Write(body)
	return err
}

func (rw *httpResponseWriter) WriteStatus(status int) {
	rw.WriteHeader(status)
}

func (rw *httpResponseWriter) Committed() bool {
	return rw.committed
}

// Status is the status written, or 0.
func (rw *httpResponseWriter) Status() int {
	return rw.status
}

func (rw *httpResponseWriter) Header() http.Header {
	return rw.w.Header()
}

func (rw *httpResponseWriter) WriteHeader(status int) {
	if rw.committed {
		return
	}
	rw.committed = true
	rw.status = status
	rw.w.WriteHeader(status)
}

func (rw *httpResponseWriter) Write(p []byte) (int, error) {
	if !rw.committed {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.w.Write(p)
}

func (rw *httpResponseWriter) Flush() {
	if f, ok := rw.w.(http.Flusher); ok {
		if !rw.committed {
			rw.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}
