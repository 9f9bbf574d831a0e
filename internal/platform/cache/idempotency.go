package cache

import (
	"bytes"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthshare/healthshare/internal/platform/auth"
	"github.com/healthshare/healthshare/internal/platform/metrics"
)

// Headers understood and set by Idempotency.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored response of an earlier request carrying the
// same Idempotency-Key on the same route by the same user. Only 2xx
// responses are stored, so failed attempts can be retried with the same key.
func Idempotency(c Cache, rec metrics.Recorder, logger zerolog.Logger) echo.MiddlewareFunc {
	if rec == nil {
		rec = metrics.Noop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			key := ctx.Request().Header.Get(HeaderIdempotencyKey)
			if key == "" {
				return next(ctx)
			}
			cacheKey := auth.UserIDFromContext(ctx.Request().Context()) + " " +
				ctx.Request().Method + " " + ctx.Path() + " " + key

			if raw, ok := c.Get(cacheKey); ok {
				var stored storedResponse
				if err := json.Unmarshal(raw, &stored); err == nil {
					rec.IncIdempotentReplays()
					ctx.Response().Header().Set(HeaderReplayed, "true")
					return ctx.Blob(stored.Status, stored.ContentType, stored.Body)
				}
			}

			buf := new(bytes.Buffer)
			res := ctx.Response()
			res.Writer = &captureWriter{Writer: io.MultiWriter(res.Writer, buf), ResponseWriter: res.Writer}

			if err := next(ctx); err != nil {
				return err
			}
			if res.Status >= 200 && res.Status < 300 {
				data, err := json.Marshal(storedResponse{
					Status:      res.Status,
					ContentType: res.Header().Get(echo.HeaderContentType),
					Body:        buf.Bytes(),
				})
				if err == nil {
					err = c.Set(cacheKey, data)
				}
				if err != nil {
					logger.Warn().Err(err).
						Str("path", ctx.Path()).
						Int("size", buf.Len()).
						Msg("idempotent response not stored")
				}
			}
			return nil
		}
	}
}

type captureWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w *captureWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
