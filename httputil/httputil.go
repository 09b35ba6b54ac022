// Package httputil has helpers for json http apis: writing json responses,
// logging requests and running a server until shutdown.
package httputil

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kjk/ledgerstore/log"
)

// GetBestRemoteAddress returns IP address of the request even for proxied requests
func GetBestRemoteAddress(r *http.Request) string {
	h := r.Header
	potentials := []string{h.Get("CF-Connecting-IP"), h.Get("X-Real-Ip"), h.Get("X-Forwarded-For"), r.RemoteAddr}
	for _, v := range potentials {
		// sometimes they are stored as "ip1, ip2, ip3" with ip1 being the best
		parts := strings.Split(v, ",")
		res := strings.TrimSpace(parts[0])
		if res != "" {
			return res
		}
	}
	return ""
}

// WriteJSON writes v as json with a given status code
func WriteJSON(w http.ResponseWriter, code int, v any) {
	d, err := json.Marshal(v)
	if err != nil {
		log.Errorf("json.Marshal() failed with '%s'\n", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(d)
}

// ErrorResponse is the body of error responses
type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSONError(w http.ResponseWriter, code int, err error) {
	WriteJSON(w, code, &ErrorResponse{Error: err.Error()})
}

// LogRequests logs every request as "http" event
func LogRequests(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeStart := time.Now()
		cw := NewCapturingResponseWriter(w)
		h.ServeHTTP(cw, r)
		dur := time.Since(timeStart)
		code := cw.StatusCode
		if code == 0 {
			code = http.StatusOK
		}
		log.EventWithDuration("http", dur,
			"method", r.Method,
			"uri", r.RequestURI,
			"code", code,
			"ipaddr", GetBestRemoteAddress(r),
			"size", cw.Size,
		)
		log.Verbosef("%s %s %d in %s\n", r.Method, r.RequestURI, code, dur)
	})
}
