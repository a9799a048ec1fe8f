package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/projectcore/changecontrol/internal/apierr"
)

// envelope is the {success, data?, error?} wrapper every response wears.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    apierr.Code `json:"code"`
	Message string      `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

// respondError maps a typed apierr.Error (or any other error, classified
// as INTERNAL) to its wire status and error envelope.
func respondError(w http.ResponseWriter, err error) {
	code := apierr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apierr.Validation:
		status = http.StatusBadRequest
	case apierr.NotFound:
		status = http.StatusNotFound
	case apierr.Conflict:
		status = http.StatusConflict
	case apierr.Internal:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		log.Printf("httpapi: internal error: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: err.Error()},
	})
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apierr.Validationf("invalid request body: %v", err)
	}
	return nil
}
