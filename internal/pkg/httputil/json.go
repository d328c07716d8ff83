package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

// MaxJSONBodySize bounds JSON request bodies (1MB).
const MaxJSONBodySize = 1 << 20

// DecodeJSON decodes the request body into v, enforcing MaxJSONBodySize.
// On failure it writes the error response and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	return DecodeJSONWithLimit(w, r, v, MaxJSONBodySize)
}

// DecodeJSONWithLimit decodes JSON with a custom size limit.
func DecodeJSONWithLimit(w http.ResponseWriter, r *http.Request, v any, maxSize int64) bool {
	limitedBody := io.LimitReader(r.Body, maxSize+1)

	decoder := json.NewDecoder(limitedBody)
	if err := decoder.Decode(v); err != nil {
		InvalidJSON(w, r, err)
		return false
	}

	// One extra byte past the limit means the body was truncated.
	var extra [1]byte
	if n, _ := limitedBody.Read(extra[:]); n > 0 {
		RequestTooLarge(w, r, maxSize)
		return false
	}

	return true
}
