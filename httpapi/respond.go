package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	hsAuth "github.com/MrEthical07/hsAuth"
)

type errorBody struct {
	Errcode string `json:"errcode"`
	Error   string `json:"error"`
}

var errEmptyBody = errors.New("empty body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a single JSON object from the request body. Empty and
// unparseable bodies are both reported as M_NOT_JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return errEmptyBody
	}
	return json.Unmarshal(body, dst)
}

func (a *api) writeNotJSON(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Errcode: string(hsAuth.ErrcodeNotJSON),
		Error:   "Missing json.",
	})
}

// writeError maps err onto the wire. Interactive re-prompts go out as 401
// with the flows payload; unclassified errors are logged under a
// correlation id and reported without detail.
func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *hsAuth.InteractiveError
	if errors.As(err, &ie) {
		writeJSON(w, http.StatusUnauthorized, ie.Flows)
		return
	}

	kind := hsAuth.ErrorKind(err)
	if kind == hsAuth.ErrcodeUnknown {
		ref := uuid.NewString()
		a.logger.Error("request failed",
			zap.String("ref", ref),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Errcode: string(hsAuth.ErrcodeUnknown),
			Error:   "Internal server error (ref " + ref + ")",
		})
		return
	}

	msg := defaultMessage(kind)
	var herr *hsAuth.Error
	if errors.As(err, &herr) && herr.Message != "" {
		msg = herr.Message
	}
	writeJSON(w, hsAuth.HTTPStatus(kind), errorBody{Errcode: string(kind), Error: msg})
}

func defaultMessage(kind hsAuth.Errcode) string {
	switch kind {
	case hsAuth.ErrcodeForbidden:
		return "Forbidden"
	case hsAuth.ErrcodeBadJSON:
		return "Bad request"
	case hsAuth.ErrcodeNotFound:
		return "Not found"
	case hsAuth.ErrcodeMissingToken:
		return "Missing access token."
	case hsAuth.ErrcodeUnknownToken:
		return "Unrecognised access token."
	case hsAuth.ErrcodeLimitExceeded:
		return "Too many requests"
	default:
		return "Internal server error"
	}
}
