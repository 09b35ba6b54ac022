package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kjk/ledgerstore/appendstore"
	"github.com/kjk/ledgerstore/httputil"
)

const maxRequestBodySize = 1 << 20

// ErrBadRequest is returned for records that can't be decoded or have invalid fields
var ErrBadRequest = errors.New("bad request")

// NewHandler returns http handler exposing the ledger:
//
//	GET  /api/{domain} : json array of records
//	POST /api/{domain} : append record sent as json, responds with 204
//
// POST /api/nfts mints an nft.
func NewHandler(l *Ledger) http.Handler {
	mux := http.NewServeMux()
	handleDomain(mux, l.Products)
	handleDomain(mux, l.Requests)
	handleDomain(mux, l.Escrows)
	handleDomain(mux, l.Proposals)
	handleDomain(mux, l.Nfts)
	handleDomain(mux, l.Deliveries)
	mux.HandleFunc("GET /api/domains", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Domains)
	})
	return mux
}

type validator[T any] interface {
	*T
	Validate() error
}

func handleDomain[T comparable, PT validator[T]](mux *http.ServeMux, s *appendstore.Store[T]) {
	uri := "/api/" + s.Key
	mux.HandleFunc("GET "+uri, func(w http.ResponseWriter, r *http.Request) {
		recs, err := list(r.Context(), s)
		if err != nil {
			httputil.WriteJSONError(w, HTTPStatusForError(err), err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, recs)
	})
	mux.HandleFunc("POST "+uri, func(w http.ResponseWriter, r *http.Request) {
		var rec T
		err := DecodeRecord[T, PT](http.MaxBytesReader(w, r.Body, maxRequestBodySize), &rec)
		if err == nil {
			err = add(r.Context(), s, rec)
		}
		if err != nil {
			httputil.WriteJSONError(w, HTTPStatusForError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// DecodeRecord decodes a single json record and validates it.
// Unknown fields are an error.
func DecodeRecord[T any, PT validator[T]](r io.Reader, rec *T) error {
	d, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	dec := json.NewDecoder(bytes.NewReader(d))
	dec.DisallowUnknownFields()
	if err = dec.Decode(rec); err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: extra data after record", ErrBadRequest)
	}
	if err = PT(rec).Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err)
	}
	return nil
}

// HTTPStatusForError maps errors to http status codes
func HTTPStatusForError(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, appendstore.ErrStorageCapacityExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, appendstore.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	}
	// includes ErrDecodeFailure
	return http.StatusInternalServerError
}
