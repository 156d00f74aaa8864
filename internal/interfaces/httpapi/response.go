package httpapi

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/delphiedge/gridline/internal/platform/logging"
	"github.com/delphiedge/gridline/internal/usecase"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(payload); err != nil {
		logging.Default().Error("httpapi: encode response", "error", err)
	}
}

// writeError maps domain errors onto the wire contract: validation
// failures get a 400 with a machine-readable code, upstream aggregation
// failures get a 502 with the failure detail, anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	var invalid *usecase.InvalidRequestError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: invalid.Code})
		return
	}

	var agg *usecase.AggregationError
	if errors.As(err, &agg) {
		writeJSON(w, http.StatusBadGateway, errorBody{Error: agg.Code, Detail: agg.Detail})
		return
	}

	writeInternalError(w)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
}
