package middleware

import (
	"errors"
	"net/http"
	"time"

	"carmen/internal/apierror"
	"carmen/internal/pricing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// retryAfterSeconds is sent with 503 responses for transient store failures.
const retryAfterSeconds = "5"

// ErrorHandler renders the last error a handler attached with c.Error.
// Domain errors map to their status; anything else is a 500 whose details
// stay in the log. Stack traces are never sent to clients.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, body := Render(err)
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", retryAfterSeconds)
		}

		ev := log.Warn()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("request_id", c.GetString(RequestIDKey)).
			Str("path", c.FullPath()).
			Str("method", c.Request.Method).
			Int("status", status).
			Err(err).
			Msg("request failed")

		c.AbortWithStatusJSON(status, body)
	}
}

// Render maps an error onto its HTTP status and response envelope.
func Render(err error) (int, any) {
	var (
		nf *pricing.NotFoundError
		ve *pricing.ValidationError
		ru *pricing.RateUnavailableError
		te *pricing.TransientError
		ce *pricing.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		fields := make([]apierror.FieldError, len(ve.Fields))
		for i, f := range ve.Fields {
			fields[i] = apierror.FieldError{Field: f.Field, Message: f.Message}
		}
		return http.StatusBadRequest, apierror.NewValidation(fields)
	case errors.As(err, &nf):
		return http.StatusNotFound, apierror.WithCode(pricing.CodeNotFound, nf.Error())
	case errors.As(err, &ru):
		return http.StatusUnprocessableEntity, apierror.WithCode(pricing.CodeRateUnavailable, ru.Error())
	case errors.As(err, &ce):
		return http.StatusConflict, apierror.WithCode(pricing.CodeConflict, ce.Error())
	case errors.As(err, &te):
		return http.StatusServiceUnavailable, apierror.WithCode(pricing.CodeTransient, "Service temporarily unavailable, retry later")
	default:
		return http.StatusInternalServerError, apierror.New("Internal server error")
	}
}

// Recovery handles panics and converts them into 500 responses.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("request_id", c.GetString(RequestIDKey)).
					Interface("panic", r).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Internal server error"))
			}
		}()
		c.Next()
	}
}

// Logger logs each request with method, path, status, latency, and request_id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
