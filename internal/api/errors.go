package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/gamesite-bff/internal/apperr"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(kind apperr.Kind) string {
	switch kind {
	case apperr.KindNotFound:
		return "Not found"
	case apperr.KindUpstream:
		return "Upstream service unavailable"
	case apperr.KindApplication:
		return "Upstream service rejected the request"
	case apperr.KindReconciliation:
		return "Content repository did not confirm the post"
	default:
		return "Internal server error"
	}
}

// errorBody returns the client-facing message and details for err. Upstream
// error text is never exposed; validation messages and GraphQL error
// messages are.
func errorBody(err error) (string, any) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindValidation {
		var e *apperr.Error
		if errors.As(err, &e) && e.Kind == apperr.KindValidation && e.Msg != "" {
			return e.Msg, nil
		}
		return "Invalid request", nil
	}

	var details any
	if kind == apperr.KindApplication {
		if msgs, ok := apperr.DetailsOf(err).(interface{ Messages() []string }); ok {
			details = msgs.Messages()
		}
	}
	return publicMessage(kind), details
}

func respondError(c *gin.Context, operation string, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	logError(operation, kind, status, err)

	message, details := errorBody(err)
	body := gin.H{"error": message}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, body)
}

func logError(operation string, kind apperr.Kind, status int, err error) {
	switch {
	case status >= 500:
		slog.Error("Request failed", "operation", operation, "kind", kind.String(), "status", status, "error", err)
	default:
		slog.Debug("Request rejected", "operation", operation, "kind", kind.String(), "status", status, "error", err)
	}
}
