package routes

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"model-gateway/middleware/pipeline/domain"
)

type yoloDetectionRequest struct {
	Data string `json:"data"` // base64-encoded image
}

type detectedObject struct {
	Index int             `json:"index"`
	Label string          `json:"label"`
	BBox  json.RawMessage `json:"bbox"`
	Score float64         `json:"score"`
}

type yoloDetectionResponse struct {
	Status  string           `json:"status"`
	Model   string           `json:"model"`
	Objects []detectedObject `json:"objects"`
	Count   int              `json:"count"`
	TS      int64            `json:"ts"`
}

// yoloDetection runs object detection. The image stays base64 end to end;
// decoding it here only validates that the client sent a real payload.
func (rt *Router) yoloDetection(w http.ResponseWriter, r *http.Request) error {
	var req yoloDetectionRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	raw, err := decodeImage(req.Data)
	if err != nil {
		return domain.InvalidPayload(err)
	}
	if len(raw) == 0 {
		return domain.BadRequest("empty image file")
	}

	res, err := rt.invoke(r, svcDetector, "detection", map[string]any{
		"image": req.Data,
	})
	if err != nil {
		return err
	}

	var rawObjects []struct {
		Label string          `json:"label"`
		BBox  json.RawMessage `json:"bbox"`
		Score float64         `json:"score"`
	}
	if err := json.Unmarshal(res, &rawObjects); err != nil {
		return domain.UpstreamFailure(err)
	}

	objects := make([]detectedObject, len(rawObjects))
	for i, obj := range rawObjects {
		objects[i] = detectedObject{Index: i, Label: obj.Label, BBox: obj.BBox, Score: obj.Score}
	}

	return writeJSON(w, http.StatusOK, yoloDetectionResponse{
		Status:  "ok",
		Model:   "yolo11s",
		Objects: objects,
		Count:   len(objects),
		TS:      time.Now().Unix(),
	})
}

// decodeImage accepts standard and URL-safe base64, with or without padding.
func decodeImage(data string) ([]byte, error) {
	s := strings.TrimSpace(data)
	if s == "" {
		return nil, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}
