package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. ReadTimeout
// stays generous because certificate uploads can be several megabytes on slow
// links.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}
