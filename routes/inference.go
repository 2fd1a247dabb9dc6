package routes

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"model-gateway/middleware/pipeline/domain"
)

// maxFrameUpload caps the frame_file part of a classification request.
const maxFrameUpload = 64 << 20

// frameMeta is the slice of frame_meta the gateway inspects to pick a
// backend. The rest of the document rides along untouched.
type frameMeta struct {
	FrameShape []int `json:"frame_shape"`
}

// predict dispatches a frame sequence to the classifier matching its color
// channel count: 3 goes to the color model, 1 to the faint model. The frame
// payload itself stays opaque to the gateway.
func (rt *Router) predict(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseMultipartForm(maxFrameUpload); err != nil {
		if r.Context().Err() != nil {
			return domain.ClientClosed(err)
		}
		return domain.InvalidPayload(err)
	}

	metaRaw := r.FormValue("frame_meta")
	if metaRaw == "" {
		return domain.BadRequest("frame_meta is required")
	}
	var meta frameMeta
	if err := json.Unmarshal([]byte(metaRaw), &meta); err != nil {
		return domain.InvalidPayload(err)
	}

	file, _, err := r.FormFile("frame_file")
	if err != nil {
		return domain.BadRequest("frame_file is required")
	}
	defer func() { _ = file.Close() }()

	frames, err := io.ReadAll(io.LimitReader(file, maxFrameUpload))
	if err != nil {
		if r.Context().Err() != nil {
			return domain.ClientClosed(err)
		}
		return domain.InvalidPayload(err)
	}

	var service string
	switch judgeChannel(meta.FrameShape) {
	case 3:
		service = svcInferenceColor
	case 1:
		service = svcInferenceFaint
	default:
		return domain.BadRequest("Bad Request")
	}

	res, err := rt.invoke(r, service, "classify", map[string]any{
		"meta":   json.RawMessage(metaRaw),
		"frames": base64.StdEncoding.EncodeToString(frames),
	})
	if err != nil {
		return err
	}
	return writeRaw(w, http.StatusOK, res)
}

// judgeChannel reads the color channel count out of a frame shape. The
// channel axis may come first or last; a two-axis shape is grayscale.
func judgeChannel(shape []int) int {
	isChannel := func(n int) bool { return n == 1 || n == 3 || n == 4 }
	switch {
	case len(shape) == 3 && isChannel(shape[2]):
		return shape[2]
	case len(shape) == 3 && isChannel(shape[0]):
		return shape[0]
	case len(shape) == 2:
		return 1
	default:
		return 0
	}
}
