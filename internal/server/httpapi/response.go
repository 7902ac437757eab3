package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

var kindStatus = map[common.Kind]int{
	common.KindValidation:   http.StatusBadRequest,
	common.KindConflict:     http.StatusConflict,
	common.KindUnauthorized: http.StatusUnauthorized,
	common.KindForbidden:    http.StatusForbidden,
	common.KindNotFound:     http.StatusNotFound,
	common.KindInternal:     http.StatusInternalServerError,
}

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorBody{StatusCode: code, Message: message})
}

// writeServiceErr maps a service error to its status. Only the public
// message is sent; internal causes are logged by the caller.
func (a *API) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	if kind == common.KindInternal {
		a.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeErr(w, kindStatus[kind], common.PublicMessage(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
