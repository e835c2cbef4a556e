package httpapi

import (
	"net/http"

	"github.com/esche888/appcollab-sub000/internal/completion"
	"github.com/esche888/appcollab-sub000/internal/providers"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// writeError maps a service error to an HTTP status and JSON body
func writeError(w http.ResponseWriter, err error) {
	kind := completion.KindOf(err)

	status := http.StatusInternalServerError
	message := err.Error()
	switch kind {
	case completion.KindConfiguration:
		status = http.StatusServiceUnavailable
	case completion.KindValidation:
		status = http.StatusBadRequest
	case completion.KindProvider:
		status = http.StatusBadGateway
		if pe, ok := providers.AsProviderError(err); ok {
			switch pe.Kind {
			case providers.KindRateLimit:
				status = http.StatusTooManyRequests
			case providers.KindTimeout:
				status = http.StatusGatewayTimeout
			}
		}
	default:
		message = "internal error"
	}

	utils.RespondWithErrorKind(w, status, string(kind), message)
}
