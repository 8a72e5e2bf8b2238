package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/validator"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 1 << 20 // 1MB

var errInvalidBody = errors.New("invalid request body")

type ErrorResponse struct {
	Error    string                 `json:"error"`
	Code     string                 `json:"code,omitempty"`
	Details  string                 `json:"details,omitempty"`
	Fields   []validator.FieldError `json:"fields,omitempty"`
	Redirect string                 `json:"redirect,omitempty"`
}

// MessageResponse is the envelope for successful writes. Message echoes the
// flash that the redirect target will show.
type MessageResponse struct {
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, kind, redirect string, data any) {
	respondJSON(w, status, MessageResponse{
		Message:  stateFrom(r).PeekFlash(kind),
		Redirect: redirect,
		Data:     data,
	})
}

// stateFrom returns the request's session, or a throwaway one when the
// session middleware is not installed.
func stateFrom(r *http.Request) *session.State {
	if s, ok := session.FromContext(r.Context()); ok {
		return s
	}
	return session.New()
}

// readForm decodes a JSON or form-encoded body into dst, whose fields are all
// strings. JSON numbers and booleans are accepted and kept as their text.
func readForm(r *http.Request, dst any) error {
	fields, err := formFields(r)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	return nil
}

func formFields(r *http.Request) (map[string]string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return map[string]string{}, nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxRequestBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
		}
		fields := make(map[string]string, len(r.PostForm))
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				fields[k] = vs[0]
			}
		}
		return fields, nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidBody, err)
	}
	fields := make(map[string]string, len(body))
	for k, v := range body {
		switch val := v.(type) {
		case nil:
			fields[k] = ""
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			return nil, fmt.Errorf("%w: field %q must be a scalar", errInvalidBody, k)
		}
	}
	return fields, nil
}

func parseID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func respondInvalidID(w http.ResponseWriter, param string) {
	respondError(w, http.StatusBadRequest, "invalid_"+param, param+" must be a positive integer")
}

func respondInvalidBody(w http.ResponseWriter) {
	respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
}
