package httputil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/kjk/ledgerstore/log"
)

// Serve serves handler on addr until ctx is cancelled, then shuts down
// the server, giving requests in progress up to 5 seconds to finish
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	if addr == "" {
		return errors.New("need to provide http address")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler)
}

func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler) error {
	httpSrv := &http.Server{
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		Handler:      handler,
	}
	chServerClosed := make(chan error, 1)
	go func() {
		err := httpSrv.Serve(ln)
		// mute error caused by Shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		chServerClosed <- err
	}()
	log.Logf("serving on http://%s\n", ln.Addr())

	select {
	case err := <-chServerClosed:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	log.Logf("server stopped\n")
	if errors.Is(err, context.DeadlineExceeded) {
		// requests in progress didn't finish in time
		return httpSrv.Close()
	}
	return err
}
