package billapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
	"github.com/odyssey-erp/billdesk/internal/purchasebills"
)

// ErrPriceNotFound is the explicit "no active price" answer of the API.
var ErrPriceNotFound = fmt.Errorf("billapi: %w", purchasebills.ErrNoActivePrice)

// APIError is a non-2xx response. Message holds the server's own text when
// it sent one.
type APIError struct {
	Op               string
	Status           int
	Message          string
	ValidationErrors []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "status " + strconv.Itoa(e.Status)
	}
	return fmt.Sprintf("billapi: %s: %s", e.Op, msg)
}

// UserMessage returns the server-provided message.
func (e *APIError) UserMessage() string {
	if len(e.ValidationErrors) > 0 && e.Message == "" {
		return strings.Join(e.ValidationErrors, "; ")
	}
	return e.Message
}

// FieldErrors maps "field: message" validation entries by field. Entries
// without a field prefix are collected under "general".
func (e *APIError) FieldErrors() map[string]string {
	if len(e.ValidationErrors) == 0 {
		return nil
	}
	fields := make(map[string]string, len(e.ValidationErrors))
	for _, entry := range e.ValidationErrors {
		field, msg, ok := strings.Cut(entry, ":")
		field = strings.TrimSpace(field)
		if !ok || field == "" || strings.ContainsAny(field, " \t") {
			field, msg = "general", entry
		}
		msg = strings.TrimSpace(msg)
		if prev, exists := fields[field]; exists {
			msg = prev + "; " + msg
		}
		fields[field] = msg
	}
	return fields
}

// Unwrap maps the status onto the httpx sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return httpx.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return httpx.ErrValidation
	case http.StatusConflict:
		return httpx.ErrDuplicate
	case http.StatusUnauthorized:
		return httpx.ErrUnauthorized
	case http.StatusForbidden:
		return httpx.ErrForbidden
	default:
		return httpx.ErrUpstream
	}
}

type errorBody struct {
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ValidationErrors json.RawMessage `json:"validationErrors"`
}

func decodeAPIError(op string, resp *http.Response) error {
	apiErr := &APIError{Op: op, Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(body.Message)
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(body.Error)
	}
	apiErr.ValidationErrors = decodeValidationErrors(body.ValidationErrors)
	return apiErr
}

// decodeValidationErrors accepts both a list of strings and a field map.
func decodeValidationErrors(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err == nil {
		out := make([]string, 0, len(fields))
		for field, msg := range fields {
			out = append(out, field+": "+msg)
		}
		sort.Strings(out)
		return out
	}
	return nil
}
