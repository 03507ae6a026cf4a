package handlers

import (
	"log"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"librotek/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("handlers: encode response: %v", err)
		}
	}
}

// respondError maps the error taxonomy onto HTTP statuses. Dependency
// and partial-state details stay in the log; the client only sees a
// retry-later message.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.Conflict:
		status = http.StatusConflict
	case errs.Dependency:
		status = http.StatusBadGateway
	case errs.PartialState:
		// Alertable: stores disagree until an operator reconciles them.
		log.Printf("handlers: PARTIAL STATE: %v", err)
	}
	if status >= http.StatusInternalServerError {
		log.Printf("handlers: %v", err)
	}
	respondJSON(w, status, map[string]string{"error": errs.UserMessage(err)})
}
