package routes

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"model-gateway/middleware/pipeline/domain"
)

// status is the allow-listed liveness probe. It never touches the backends.
func (rt *Router) status(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().Unix(),
	})
}

// service fans a heartbeat out to every backend and reports their answers.
// One unreachable backend fails the whole probe: the point of the endpoint
// is to notice exactly that.
func (rt *Router) service(w http.ResponseWriter, r *http.Request) error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		beats    = make(map[string]json.RawMessage, len(heartbeatServices))
		firstErr error
	)

	for _, name := range heartbeatServices {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			res, err := rt.invoker.Invoke(r.Context(), name, "heartbeat", nil)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			beats[name] = res
		}(name)
	}
	wg.Wait()

	if firstErr != nil {
		return domain.UpstreamFailure(firstErr)
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"message":   beats,
		"timestamp": time.Now().Unix(),
	})
}
