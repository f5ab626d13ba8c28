package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sashko-guz/thumbnailerd/internal/handler"
	"github.com/sashko-guz/thumbnailerd/internal/logger"
)

// errorBody is the JSON shape spec §6 asks for in place of a real IPC error:
// domain string "com.canonical.Thumbnailer.Error.Failed" plus a message.
type errorBody struct {
	Domain  string `json:"domain"`
	Message string `json:"message"`
}

const errorDomain = "com.canonical.Thumbnailer.Error.Failed"

// statusFor maps spec §7's reason-class taxonomy to an HTTP status.
func statusFor(class handler.ReasonClass) int {
	switch class {
	case handler.ReasonPolicyDenied:
		return http.StatusForbidden
	case handler.ReasonNotFound:
		return http.StatusNotFound
	case handler.ReasonDecodeError:
		return http.StatusUnprocessableEntity
	case handler.ReasonTransientNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status + JSON body, logging internal errors
// (spec §7: "internal ... logged").
func writeError(w http.ResponseWriter, err error) {
	var herr *handler.Error
	class := handler.ReasonInternal
	if errors.As(err, &herr) {
		class = herr.Class
	}

	if class == handler.ReasonInternal {
		logger.Errorf("[Transport] internal error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(class))
	_ = json.NewEncoder(w).Encode(errorBody{Domain: errorDomain, Message: class.Message()})
}
