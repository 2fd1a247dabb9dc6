package pipeline

import (
	"net/http"

	"model-gateway/middleware/pipeline/application"
	"model-gateway/middleware/pipeline/domain"
)

// Auth verifies the signed bearer token before the handler runs. Paths on
// the live allow-list pass through without presenting credentials.
func Auth(svc application.AuthService) Stage {
	return func(next Handler) Handler {
		return func(w http.ResponseWriter, r *http.Request) error {
			if err := svc.Authenticate(r.Context(), r.URL.Path, r.Header.Get(domain.TokenHeader)); err != nil {
				return err
			}
			return next(w, r)
		}
	}
}
