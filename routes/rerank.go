package routes

import (
	"net/http"

	"model-gateway/middleware/pipeline/domain"
)

type rerankRequest struct {
	Query     string   `json:"query"`
	Candidate []string `json:"candidate"`
}

func (rt *Router) rerank(w http.ResponseWriter, r *http.Request) error {
	var req rerankRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	if req.Query == "" || len(req.Candidate) == 0 {
		return domain.BadRequest("query and candidate (list) are required")
	}

	res, err := rt.invoke(r, svcCrossEnc, "rerank", map[string]any{
		"query":     req.Query,
		"candidate": req.Candidate,
	})
	if err != nil {
		return err
	}
	return writeRaw(w, http.StatusOK, res)
}
