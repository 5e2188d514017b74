package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pitabwire/reportal/internal/apidoc"
	"github.com/pitabwire/reportal/model"
)

const maxJSONBody = 1 << 20

// validated checks the JSON body against the documented schema for
// operationID before calling next. The body is replayed to next unchanged.
// A nil doc skips the check.
func validated(doc *apidoc.Document, operationID string, next http.HandlerFunc) http.HandlerFunc {
	if doc == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			WriteError(w, model.NewBadRequestError("request body too large"))
			return
		}
		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if err := doc.ValidateBody(operationID, body); err != nil {
			WriteError(w, err)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		next(w, r)
	}
}
