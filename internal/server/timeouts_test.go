package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/yanizio/sisconf/internal/config"
	"github.com/yanizio/sisconf/internal/directive"
)

func TestNew_UsesDirectiveCeilings(t *testing.T) {
	for _, debug := range []bool{true, false} {
		s := config.Defaults(time.Now(), "/srv/opensis")
		s.DebugMode = debug

		srv := New(":8080", http.NotFoundHandler(), directive.For(s))
		if srv.ReadTimeout != 300*time.Second || srv.WriteTimeout != 300*time.Second {
			t.Fatalf("debug=%v: read=%v write=%v, want 300s each", debug, srv.ReadTimeout, srv.WriteTimeout)
		}
		if srv.ReadHeaderTimeout != readHeaderTimeout || srv.IdleTimeout != idleTimeout {
			t.Fatalf("debug=%v: header=%v idle=%v", debug, srv.ReadHeaderTimeout, srv.IdleTimeout)
		}
		if srv.Addr != ":8080" || srv.Handler == nil {
			t.Fatalf("addr/handler not wired: %+v", srv)
		}
	}
}
