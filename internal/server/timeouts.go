// internal/server/timeouts.go
//
// HTTP server helper bound to the runtime directives.
//
//   • ReadTimeout        – MaxInputTime, the ceiling for reading a request
//   • WriteTimeout       – MaxExecutionTime, the ceiling for producing a reply
//   • ReadHeaderTimeout  – abort slow-loris headers (10 s)
//   • IdleTimeout        – close keep-alives on idle clients (60 s)
//
// The application owns its handlers and listener; this only centralises the
// limits so every entry point applies the same ones.
//

package server

import (
	"net/http"
	"time"

	"github.com/yanizio/sisconf/internal/directive"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// New constructs an *http.Server whose time ceilings come from d.
func New(addr string, handler http.Handler, d directive.Directives) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       d.MaxInputTime,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      d.MaxExecutionTime,
		IdleTimeout:       idleTimeout,
		// TLSConfig may be injected by callers.
	}
}
