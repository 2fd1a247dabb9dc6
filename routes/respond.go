package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"model-gateway/middleware/pipeline/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, raw []byte) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(raw)
	return err
}

// decodeBody reads a JSON request body into dst. A broken connection during
// the read is the client's disconnect, not a payload problem.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if r.Context().Err() != nil || errors.Is(err, context.Canceled) {
			return domain.ClientClosed(err)
		}
		return domain.InvalidPayload(err)
	}
	return nil
}
