package scenes

import (
	"caption-studio/scene"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// ExportFilename is the download name of rendered scenes.
const ExportFilename = "canvas-image.png"

type (
	// Registry is the set of live scenes served by the API.
	Registry interface {
		Create() *scene.Editor
		Get(id string) (*scene.Editor, bool)
		Remove(id string) bool
		List() []scene.Summary
	}

	// ViewerCounter reports how many live clients watch a scene.
	ViewerCounter interface {
		Viewers(sceneID string) int
	}

	SceneCreateResponse struct {
		ID string `json:"id"`
	}

	SceneSummary struct {
		ID      string `json:"id"`
		Layers  int    `json:"layers"`
		Viewers int    `json:"viewers"`
	}

	LayersResponse struct {
		Index  *int                    `json:"index,omitempty"`
		Layers []scene.LayerDescriptor `json:"layers"`
	}

	backgroundRequest struct {
		URL string `json:"url"`
	}

	shapeRequest struct {
		Kind string `json:"kind"`
	}

	textRequest struct {
		Text string `json:"text"`
	}

	// transformRequest carries a partial transform; omitted fields keep
	// their current value.
	transformRequest struct {
		Left   *float64 `json:"left"`
		Top    *float64 `json:"top"`
		ScaleX *float64 `json:"scaleX"`
		ScaleY *float64 `json:"scaleY"`
		Angle  *float64 `json:"angle"`
	}
)

// ErrorStatus maps editor errors onto HTTP status codes.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, scene.ErrNoLayer):
		return http.StatusNotFound
	case errors.Is(err, scene.ErrLocked), errors.Is(err, scene.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, scene.ErrNotText), errors.Is(err, scene.ErrInvalidTransform),
		errors.Is(err, scene.ErrBlockedAddress):
		return http.StatusBadRequest
	case errors.Is(err, scene.ErrDecode), errors.Is(err, scene.ErrImageTooLarge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scene.ErrNotMounted):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func renderSceneError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := ErrorStatus(err)
	entry := logrus.WithFields(logrus.Fields{
		"error":    err,
		"scene_id": chi.URLParam(r, "id"),
	})
	if status >= http.StatusInternalServerError {
		entry.Error(msg)
	} else {
		entry.Warn(msg)
	}
	renderError(w, r, status, err.Error())
}

// EditorFor resolves the {id} URL parameter, replying 404 when unknown.
func EditorFor(w http.ResponseWriter, r *http.Request, reg Registry) (*scene.Editor, bool) {
	id := chi.URLParam(r, "id")
	editor, ok := reg.Get(id)
	if !ok {
		renderError(w, r, http.StatusNotFound, "Scene not found")
		return nil, false
	}
	return editor, true
}

func layerIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Layer index must be an integer")
		return 0, false
	}
	return index, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

func HandleCreate(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor := reg.Create()
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, SceneCreateResponse{ID: editor.ID()})
	}
}

func HandleList(reg Registry, viewers ViewerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := reg.List()
		out := make([]SceneSummary, 0, len(summaries))
		for _, s := range summaries {
			entry := SceneSummary{ID: s.ID, Layers: s.Layers}
			if viewers != nil {
				entry.Viewers = viewers.Viewers(s.ID)
			}
			out = append(out, entry)
		}
		render.JSON(w, r, out)
	}
}

func HandleDelete(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !reg.Remove(chi.URLParam(r, "id")) {
			renderError(w, r, http.StatusNotFound, "Scene not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleLoadBackground(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		var req backgroundRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.URL == "" {
			renderError(w, r, http.StatusBadRequest, "url is required")
			return
		}

		if err := editor.LoadBackground(r.Context(), req.URL); err != nil {
			renderSceneError(w, r, err, "Failed to load background")
			return
		}
		render.JSON(w, r, LayersResponse{Layers: editor.DescribeLayers()})
	}
}

func HandleAddShape(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		var req shapeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		kind, err := scene.ParseShapeKind(req.Kind)
		if err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		index, err := editor.AddShape(kind)
		if err != nil {
			renderSceneError(w, r, err, "Failed to add shape")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, LayersResponse{Index: &index, Layers: editor.DescribeLayers()})
	}
}

func HandleAddText(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		var req textRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}

		index, err := editor.AddText(req.Text)
		if err != nil {
			renderSceneError(w, r, err, "Failed to add text")
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, LayersResponse{Index: &index, Layers: editor.DescribeLayers()})
	}
}

func HandleTransform(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		index, ok := layerIndex(w, r)
		if !ok {
			return
		}
		var req transformRequest
		if !decodeBody(w, r, &req) {
			return
		}

		err := editor.UpdateTransform(index, func(t *scene.Transform) {
			t.Left = valueOr(req.Left, t.Left)
			t.Top = valueOr(req.Top, t.Top)
			t.ScaleX = valueOr(req.ScaleX, t.ScaleX)
			t.ScaleY = valueOr(req.ScaleY, t.ScaleY)
			t.Angle = valueOr(req.Angle, t.Angle)
		})
		if err != nil {
			renderSceneError(w, r, err, "Failed to transform layer")
			return
		}
		render.JSON(w, r, LayersResponse{Layers: editor.DescribeLayers()})
	}
}

func HandleEditText(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		index, ok := layerIndex(w, r)
		if !ok {
			return
		}
		var req textRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := editor.EditText(index, req.Text); err != nil {
			renderSceneError(w, r, err, "Failed to edit text")
			return
		}
		render.JSON(w, r, LayersResponse{Layers: editor.DescribeLayers()})
	}
}

func HandleLayers(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		render.JSON(w, r, editor.DescribeLayers())
	}
}

// HandleExport renders the scene and streams it as a PNG download.
func HandleExport(reg Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		editor, ok := EditorFor(w, r, reg)
		if !ok {
			return
		}
		data, err := editor.Export()
		if err != nil {
			renderSceneError(w, r, err, "Failed to export scene")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		if _, err := w.Write(data); err != nil {
			logrus.WithError(err).Warn("Failed to write export")
		}
	}
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
