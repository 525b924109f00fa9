package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/apperr"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var se *apperr.StockInsufficientError
	switch {
	case errors.As(err, &se):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "details": se})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrCapacityExceeded), errors.Is(err, apperr.ErrDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("invalid json: %v", err)
	}
	return nil
}

// queryMap flattens query parameters for the filter decoders. Repeated keys
// become lists; "attributes" is a JSON object.
func queryMap(q url.Values) (map[string]any, error) {
	out := make(map[string]any, len(q))
	for k, vs := range q {
		switch {
		case k == "attributes":
			var attrs map[string]any
			if err := json.Unmarshal([]byte(vs[0]), &attrs); err != nil {
				return nil, apperr.Validation("attributes: %v", err)
			}
			out[k] = attrs
		case len(vs) == 1:
			out[k] = vs[0]
		default:
			out[k] = vs
		}
	}
	return out, nil
}

// parseDay accepts an RFC 3339 instant or a bare date. A bare date is taken
// as noon UTC so it lands on the same civil day in every zone within 12h.
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, apperr.Validation("date %q: expected RFC 3339 or YYYY-MM-DD", s)
	}
	return d.Add(12 * time.Hour), nil
}
