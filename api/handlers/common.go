package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/MbInteligen/mbras-c2s-enrichment/api"
	"github.com/MbInteligen/mbras-c2s-enrichment/types"
	"go.uber.org/zap"
)

// Response is the canonical API envelope, defined in api/doc.go.
type Response = api.Response

// ErrorInfo is the canonical public error projection, defined in api/doc.go.
type ErrorInfo = api.ErrorInfo

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return
	}
}

// WriteSuccess writes a 200 response wrapping data in the envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// WriteError projects a *types.Error onto its HTTP status and writes the
// envelope. The cause and context chain are logged but never serialized.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus()

	if logger != nil {
		logger.Error("request failed",
			zap.String("kind", string(err.Kind)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.Strings("context", err.Context),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Kind:      string(err.Kind),
			Message:   err.Message,
			Retryable: err.Retryable,
		},
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage is a convenience wrapper for an ad-hoc error kind and
// message without a preconstructed *types.Error.
func WriteErrorMessage(w http.ResponseWriter, kind types.ErrorKind, message string, logger *zap.Logger) {
	WriteError(w, types.New(kind, message), logger)
}

// DecodeJSONBody decodes a JSON request body into dst, rejecting unknown
// fields. The outermost BodyLimit middleware already wraps r.Body in an
// http.MaxBytesReader; a read that trips that cap surfaces here as
// *http.MaxBytesError, which is projected as 413 PayloadTooLarge rather
// than 400 Validation.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.New(types.KindValidation, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiErr := types.New(types.KindPayloadTooLarge, "request body too large").WithCause(err)
			WriteError(w, apiErr, logger)
			return apiErr
		}
		apiErr := types.New(types.KindValidation, "invalid JSON body").WithCause(err)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}

// ValidateContentType requires an application/json Content-Type, tolerant
// of parameters like charset.
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		apiErr := types.New(types.KindValidation, "Content-Type must be application/json")
		WriteError(w, apiErr, logger)
		return false
	}
	return true
}

// ValidateURL reports whether s is a well-formed HTTP or HTTPS URL.
func ValidateURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateEnum reports whether value is one of allowed.
func ValidateEnum(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// ResponseWriter wraps http.ResponseWriter to capture the status code
// written, used by middleware that needs to observe the outcome.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w for status-code capture.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
