// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the control plane server under supervision.
//
// ListenAndServe runs in a goroutine. On context cancellation the server is
// shut down with shutdownTimeout so in-flight restores can finish writing
// their response.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
	addr            string
}

// NewHTTPServerService creates the wrapper. A non-positive shutdownTimeout
// becomes 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	svc := &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "control-plane",
	}
	if hs, ok := server.(*http.Server); ok {
		svc.addr = hs.Addr
	}
	return svc
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("addr", h.addr).Msg("Control plane listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("control plane server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control plane shutdown failed: %w", err)
		}

		<-errCh
		logging.Info().Msg("Control plane stopped")
		return ctx.Err()
	}
}

// String names the service in suture events.
func (h *HTTPServerService) String() string {
	return h.name
}
