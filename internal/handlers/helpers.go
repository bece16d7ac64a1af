package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/docchat/internal/interfaces"
	"github.com/ternarybob/docchat/internal/models"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// StatusCode maps an outcome status to the HTTP status it is sent with.
// Transient provider failures are still 200: the body carries the message.
func StatusCode(status models.Status) int {
	switch status {
	case models.StatusClientError:
		return http.StatusBadRequest
	case models.StatusConfigError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// WriteOutcome writes a pipeline outcome envelope
func WriteOutcome(w http.ResponseWriter, outcome models.Outcome) error {
	return WriteJSON(w, StatusCode(outcome.Status), outcome)
}

// newValidator reports field errors by their json names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationOutcome converts validator errors into a client_error outcome
func validationOutcome(err error) models.Outcome {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		names := make([]string, len(fieldErrors))
		for i, fe := range fieldErrors {
			names[i] = fe.Field()
		}
		err = fmt.Errorf("%w: %s", interfaces.ErrMissingField, strings.Join(names, ", "))
	}
	return models.Outcome{Text: err.Error(), Status: models.StatusClientError}
}
