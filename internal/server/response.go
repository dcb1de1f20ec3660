package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/empdb/internal/errs"
	"github.com/koustreak/empdb/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, r, errs.Wrap(errs.CodeErr, "failed to encode response", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
	}
	code := errs.CodeOf(err).String()
	if status == http.StatusBadRequest {
		code = "bad_request"
	}
	body, _ := json.Marshal(errorBody{Error: err.Error(), Code: code})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// statusOf maps an outcome code to the HTTP status returned for it.
func statusOf(err error) int {
	var bad *requestError
	if errors.As(err, &bad) {
		return http.StatusBadRequest
	}
	switch errs.CodeOf(err) {
	case errs.CodeInvalidName:
		return http.StatusBadRequest
	case errs.CodeNoData:
		return http.StatusNotFound
	case errs.CodeLockTableFailed, errs.CodeTxRollback, errs.CodeTxCreateErr:
		return http.StatusConflict
	case errs.CodeConnClosed, errs.CodeConnErr, errs.CodeConnUnknown:
		return http.StatusServiceUnavailable
	case errs.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestError is a malformed request, rejected before the database is
// involved.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }
