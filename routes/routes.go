// Package routes holds the gateway's call-through handlers. Each handler
// validates the request at the HTTP boundary, dispatches to an inference
// backend through the upstream.Invoker and writes the backend result;
// model semantics stay on the backend side.
package routes

import (
	"net/http"

	"model-gateway/middleware/pipeline"
	"model-gateway/middleware/pipeline/domain"
	"model-gateway/upstream"
)

// Backend service names as registered in the serving group.
const (
	svcEmbeddingEN    = "EmbeddingEN"
	svcEmbeddingZH    = "EmbeddingZH"
	svcCrossEnc       = "CrossENC"
	svcDetector       = "YoloUltra"
	svcInferenceColor = "InferenceColor"
	svcInferenceFaint = "InferenceFaint"
)

// heartbeatServices are probed by GET /service.
var heartbeatServices = []string{
	svcCrossEnc, svcEmbeddingEN, svcEmbeddingZH, svcInferenceColor, svcInferenceFaint,
}

// Router dispatches requests to the call-through handlers.
type Router struct {
	invoker upstream.Invoker
}

func NewRouter(invoker upstream.Invoker) *Router {
	return &Router{invoker: invoker}
}

// Handle is the pipeline root handler.
func (rt *Router) Handle(w http.ResponseWriter, r *http.Request) error {
	switch r.URL.Path {
	case "/", "/status":
		return rt.requireMethod(r, http.MethodGet, rt.status)(w, r)
	case "/service":
		return rt.requireMethod(r, http.MethodGet, rt.service)(w, r)
	case "/tensor/en":
		return rt.requireMethod(r, http.MethodPost, rt.tensorHandler(svcEmbeddingEN))(w, r)
	case "/tensor/zh":
		return rt.requireMethod(r, http.MethodPost, rt.tensorHandler(svcEmbeddingZH))(w, r)
	case "/rerank":
		return rt.requireMethod(r, http.MethodPost, rt.rerank)(w, r)
	case "/predict":
		return rt.requireMethod(r, http.MethodPost, rt.predict)(w, r)
	case "/yolo-detection":
		return rt.requireMethod(r, http.MethodPost, rt.yoloDetection)(w, r)
	default:
		return writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	}
}

func (rt *Router) requireMethod(r *http.Request, method string, h pipeline.Handler) pipeline.Handler {
	if r.Method == method {
		return h
	}
	return func(w http.ResponseWriter, _ *http.Request) error {
		w.Header().Set("Allow", method)
		return writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
	}
}

// invoke wraps backend errors into the 502 taxonomy before they leave the
// handler layer.
func (rt *Router) invoke(r *http.Request, service, method string, payload any) ([]byte, error) {
	res, err := rt.invoker.Invoke(r.Context(), service, method, payload)
	if err != nil {
		return nil, domain.UpstreamFailure(err)
	}
	return res, nil
}
