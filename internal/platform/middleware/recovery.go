package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/domain/consent"
	"github.com/healthshare/healthshare/internal/platform/fhir"
)

// Recovery turns handler panics into a 500 OperationOutcome. A consent
// guard violation is logged as such; it means a code path tried to convert
// data the user never consented to share.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				evt := logger.Error().
					Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(stack[:n]))

				msg := "panic recovered"
				if gv, ok := r.(consent.GuardViolation); ok {
					evt = evt.Str("data_type", string(gv.DataType))
					msg = "consent guard violation"
				}
				evt.Msg(msg)

				if c.Response().Committed {
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
					return
				}
				err = c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome("internal server error"))
			}()
			return next(c)
		}
	}
}
