package api

import (
	"encoding/json"
	"net/http"

	"github.com/octopus-bim/octopus/pkg/appctx"
	"github.com/octopus-bim/octopus/pkg/errtypes"
)

// writeError maps an application error to an HTTP status the way
// errtypes' Is* interfaces classify it, and writes a small JSON body.
// Unclassified errors surface as 500 and get logged; classified errors are
// expected operational outcomes and are not logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	writeClassified(w, r, err, status, msg)
}

// writeReadError is writeError's variant for GET handlers: an RBAC denial
// is remapped to 404 instead of 403, so a read cannot be used to confirm a
// resource exists to a caller who isn't allowed to see it. Every other
// classification, including QuotaExceeded's 403, is unchanged.
func writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if isKind[errtypes.IsForbidden](err) {
		status, msg = http.StatusNotFound, errtypes.NotFound("resource").Error()
	}
	writeClassified(w, r, err, status, msg)
}

func writeClassified(w http.ResponseWriter, r *http.Request, err error, status int, msg string) {
	if status >= http.StatusInternalServerError {
		appctx.GetLogger(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("api: request failed")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case isKind[errtypes.IsNotFound](err), isKind[errtypes.IsNotReady](err):
		return http.StatusNotFound, err.Error()
	case isKind[errtypes.IsValidation](err):
		return http.StatusBadRequest, err.Error()
	case isKind[errtypes.IsUnauthorized](err), isKind[errtypes.IsInvalidCredentials](err):
		return http.StatusUnauthorized, err.Error()
	case isKind[errtypes.IsForbidden](err), isKind[errtypes.IsQuotaExceeded](err):
		return http.StatusForbidden, err.Error()
	case isKind[errtypes.IsAlreadyExists](err), isKind[errtypes.IsConflict](err):
		return http.StatusConflict, err.Error()
	case isKind[errtypes.IsNotSupported](err):
		return http.StatusNotImplemented, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func isKind[T any](err error) bool {
	_, ok := err.(T)
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
