package httputil

import "net/http"

// CapturingResponseWriter remembers status code and size of the response
type CapturingResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Size       int64
}

func NewCapturingResponseWriter(w http.ResponseWriter) *CapturingResponseWriter {
	return &CapturingResponseWriter{ResponseWriter: w}
}

func (w *CapturingResponseWriter) WriteHeader(statusCode int) {
	if w.StatusCode == 0 {
		w.StatusCode = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *CapturingResponseWriter) Write(d []byte) (int, error) {
	// Write() without WriteHeader() implies 200
	if w.StatusCode == 0 {
		w.StatusCode = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(d)
	w.Size += int64(n)
	return n, err
}
