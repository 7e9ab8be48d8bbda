package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error envelope returned by the API.
// Errors carries field-keyed details for 422 responses.
type ErrorResponse struct {
	Message string `json:"message"`
	Errors  any    `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"message":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Message: msg, Errors: details})
}

// JSONValidation writes the standard 422 envelope used for both field
// validation failures and business-rule conflicts.
func JSONValidation(w http.ResponseWriter, details any) {
	JSONError(w, http.StatusUnprocessableEntity, "Données invalides", details)
}
