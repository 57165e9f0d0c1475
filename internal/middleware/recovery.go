package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	apperrors "github.com/flowride/flow/internal/errors"
	"github.com/flowride/flow/pkg/utils"
)

// Recovery converts handler panics into a 500 response instead of killing
// the connection. The stack goes to the log, never to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic on %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				utils.Error(w, apperrors.InternalError("an unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
