package handlers

import (
	"net/http"

	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

// errorResponder writes error bodies for the probe handlers.
var errorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder replaces the responder used by handlers; nil restores
// the default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		responder = apperrors.RespondWithError
	}
	errorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	errorResponder(w, r, err)
}
