package exports

import (
	"caption-studio/core"
	"caption-studio/handlers/api/scenes"
	"caption-studio/middleware"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type saveRequest struct {
	Name    string `json:"name"`
	Caption string `json:"caption"`
}

// HandleSave renders scene {id} and stores the PNG in the caller's gallery.
func HandleSave(reg scenes.Registry, store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		editor, ok := scenes.EditorFor(w, r, reg)
		if !ok {
			return
		}

		var req saveRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
				return
			}
		}
		if req.Name == "" {
			req.Name = scenes.ExportFilename
		}

		data, err := editor.Export()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"scene_id": editor.ID(),
			}).Error("Failed to render export")
			render.Status(r, scenes.ErrorStatus(err))
			render.JSON(w, r, map[string]string{"error": "Failed to render scene"})
			return
		}

		export := &core.Export{
			ID:      ulid.Make().String(),
			UserID:  claims.Subject,
			SceneID: editor.ID(),
			Name:    req.Name,
			Caption: req.Caption,
			Data:    data,
		}
		if err := store.Save(r.Context(), export); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to save export")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save export"})
			return
		}

		export.Data = nil
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, export)
	}
}

func HandleList(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		exports, err := store.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
			}).Error("Failed to list exports")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list exports"})
			return
		}
		if exports == nil {
			exports = []*core.Export{}
		}
		render.JSON(w, r, exports)
	}
}

// HandleGet streams a stored export as a PNG download.
func HandleGet(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		export, err := store.Get(r.Context(), claims.Subject, id)
		if err != nil {
			status, msg := http.StatusInternalServerError, "Failed to get export"
			if errors.Is(err, core.ErrExportNotFound) {
				status, msg = http.StatusNotFound, "Export not found"
			}
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Warn("Failed to get export")
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.Name}))
		w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
		w.Write(export.Data)
	}
}

func HandleDelete(store core.ExportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		id := chi.URLParam(r, "id")
		if err := store.Delete(r.Context(), claims.Subject, id); err != nil {
			status, msg := http.StatusInternalServerError, "Failed to delete export"
			if errors.Is(err, core.ErrExportNotFound) {
				status, msg = http.StatusNotFound, "Export not found"
			}
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"userID": claims.Subject,
				"id":     id,
			}).Error("Failed to delete export")
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
