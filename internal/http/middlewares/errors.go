package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/travelhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

// ErrorHandler is the single place that turns errors into responses. It
// renders the last error recorded on the context once the chain is done.
func ErrorHandler(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx *gin.Context) {
		ctx.Next()

		if len(ctx.Errors) == 0 || ctx.Writer.Written() {
			return
		}

		err := ctx.Errors.Last().Err
		status := apperr.HTTPStatus(err)

		reqID, _ := ctx.Get(CtxRequestID)

		attrs := []any{
			"status", status,
			"kind", string(apperr.KindOf(err)),
			"method", ctx.Request.Method,
			"path", ctx.Request.URL.Path,
			"request_id", reqID,
			"err", err.Error(),
		}

		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			log.ErrorContext(ctx.Request.Context(), "request_failed", attrs...)
		} else {
			log.WarnContext(ctx.Request.Context(), "request_rejected", attrs...)
		}

		body := gin.H{
			"code":      apperr.Code(err),
			"message":   apperr.PublicMessage(err),
			"requestId": reqID,
		}
		if details := apperr.DetailsOf(err); details != nil {
			body["details"] = details
		}

		ctx.JSON(status, gin.H{"error": body})
	}
}
