package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"crossfeed/pkg/utils"
)

// Recovery catches a panic in any downstream handler, logs it with a
// stack trace, and returns 500 instead of letting it crash the process.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.L().Error("panic recovered in http handler",
					utils.Any("panic", err),
					utils.String("stack", string(debug.Stack())),
				)
				http.Error(
					w,
					fmt.Sprintf("Internal Server Error: %v", err),
					http.StatusInternalServerError,
				)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
