package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/sisconf/internal/directive"
)

// Recover turns a handler panic into a 500.  The panic value and stack are
// written to the client only when rt.DisplayErrors is set; the log entry
// is subject to rt.Level like any other.
func Recover(rt *directive.Runtime, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				stack := debug.Stack()
				log.Errorw("handler panic", "path", r.URL.Path, "panic", v, "stack", string(stack))
				WriteError(w, rt, http.StatusInternalServerError, fmt.Errorf("panic: %v\n\n%s", v, stack))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError replies with status.  err's text is included only when
// rt.DisplayErrors is set.
func WriteError(w http.ResponseWriter, rt *directive.Runtime, status int, err error) {
	msg := http.StatusText(status)
	if rt.DisplayErrors && err != nil {
		msg = err.Error()
	}
	http.Error(w, msg, status)
}

// Stack composes Recover and LimitUploads, outermost first.
func Stack(rt *directive.Runtime, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return chi.Chain(
		Recover(rt, log),
		LimitUploads(rt.Directives),
	).Handler
}
