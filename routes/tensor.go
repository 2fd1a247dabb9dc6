package routes

import (
	"net/http"

	"model-gateway/middleware/pipeline"
	"model-gateway/middleware/pipeline/domain"
)

// tensorRequest asks an embedding backend for vectors and, optionally, the
// top-K similarity scores between query and elements.
type tensorRequest struct {
	Query    string   `json:"query"`
	Elements []string `json:"elements"`
	S        bool     `json:"s"`
	K        int      `json:"k"`
}

func (rt *Router) tensorHandler(service string) pipeline.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req tensorRequest
		if err := decodeBody(r, &req); err != nil {
			return err
		}

		if req.Query == "" && len(req.Elements) == 0 {
			return domain.BadRequest("query and elements required")
		}
		if req.K <= 0 {
			req.K = 5
		}
		if req.K > 50 {
			req.K = 50
		}

		mesh := make([]string, 0, len(req.Elements)+1)
		if req.Query != "" {
			mesh = append(mesh, req.Query)
		}
		mesh = append(mesh, req.Elements...)

		res, err := rt.invoke(r, service, "tensor", map[string]any{
			"query":    req.Query,
			"elements": req.Elements,
			"mesh":     mesh,
			"s":        req.S,
			"k":        req.K,
		})
		if err != nil {
			return err
		}
		return writeRaw(w, http.StatusOK, res)
	}
}
