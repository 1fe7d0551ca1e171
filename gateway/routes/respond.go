package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	coreerrors "fall/core/errors"
	"fall/core/types"
	"fall/crypto"
	"fall/gateway/middleware"
)

const requestLimit = 64 << 10

var (
	errEmptyBody       = errors.New("request body is empty")
	errSubjectMismatch = errors.New("address does not match token subject")
)

func decodeRequest(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	middleware.WriteProblem(w, http.StatusBadRequest, string(coreerrors.ClassValidation), err.Error())
}

var classStatus = map[coreerrors.Class]int{
	coreerrors.ClassValidation:    http.StatusBadRequest,
	coreerrors.ClassNotFound:      http.StatusNotFound,
	coreerrors.ClassConflict:      http.StatusConflict,
	coreerrors.ClassLiquidity:     http.StatusUnprocessableEntity,
	coreerrors.ClassPaused:        http.StatusServiceUnavailable,
	coreerrors.ClassProtocolFault: http.StatusInternalServerError,
}

// writeServiceError maps an engine failure onto its HTTP status. Internal
// failures are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	if errors.Is(err, errSubjectMismatch) {
		middleware.WriteProblem(w, http.StatusForbidden, "forbidden", err.Error())
		return
	}
	class := coreerrors.Classify(err)
	status, ok := classStatus[class]
	if !ok {
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		middleware.WriteProblem(w, http.StatusInternalServerError, string(coreerrors.ClassInternal), "internal error")
		return
	}
	if class == coreerrors.ClassProtocolFault {
		logger.Error("protocol fault", "path", r.URL.Path, "error", err)
	}
	middleware.WriteProblem(w, status, string(class), err.Error())
}

func poolParam(r *http.Request) (types.PoolID, error) {
	return types.ParsePoolID(chi.URLParam(r, "pool"))
}

func addressParam(r *http.Request, name string) (crypto.Address, error) {
	return parseAddress(chi.URLParam(r, name))
}

func parseAddress(raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil || addr.Prefix() != crypto.FallPrefix {
		return crypto.Address{}, fmt.Errorf("%w: %q", coreerrors.ErrInvalidAddress, raw)
	}
	return addr, nil
}

// actor resolves who a mutating request acts as. With auth enabled it is the
// token subject and a body address, if present, must agree with it.
func actor(r *http.Request, claimed string) (crypto.Address, error) {
	if subject, ok := middleware.Subject(r.Context()); ok {
		if claimed != "" && claimed != subject.String() {
			return crypto.Address{}, errSubjectMismatch
		}
		return subject, nil
	}
	return parseAddress(claimed)
}
