package errs

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// HTTPErrorResponse logs err and writes an empty JSON object with a status
// derived from its kind: InvalidRequest maps to 400, everything else to 500.
func HTTPErrorResponse(w http.ResponseWriter, logger zerolog.Logger, err error) {
	code := http.StatusInternalServerError
	if KindIs(InvalidRequest, err) {
		code = http.StatusBadRequest
	}

	logger.Error().Err(err).Int("status", code).Msg("request failed")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct{}{})
}
