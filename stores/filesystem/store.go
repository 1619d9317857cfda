package filesystem

import (
	"caption-studio/core"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// fsStore writes each export as <base>/<user>/<id>.png with a sibling
// <id>.json holding its metadata.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		logrus.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// paths resolves the metadata and image paths of an export and refuses
// anything that escapes the user's directory.
func (s *fsStore) paths(userID, id string) (userPath, metaPath, pngPath string, err error) {
	if userID == "" || filepath.Base(userID) != userID || userID == "." || userID == ".." {
		return "", "", "", fmt.Errorf("invalid user id %q", userID)
	}
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", "", "", fmt.Errorf("invalid export id %q", id)
	}

	userPath = filepath.Join(s.basePath, userID)
	absUser, err := filepath.Abs(userPath)
	if err != nil {
		return "", "", "", err
	}
	absMeta, err := filepath.Abs(filepath.Join(userPath, id+".json"))
	if err != nil {
		return "", "", "", err
	}
	if !strings.HasPrefix(absMeta, absUser+string(filepath.Separator)) {
		return "", "", "", fmt.Errorf("invalid path: access denied")
	}
	return userPath, absMeta, strings.TrimSuffix(absMeta, ".json") + ".png", nil
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Export, error) {
	userPath := filepath.Join(s.basePath, userID)
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("User directory does not exist, returning empty list.")
			return []*core.Export{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	exports := make([]*core.Export, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userPath, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read export metadata %s, skipping", file.Name())
			continue
		}
		var export core.Export
		if err := json.Unmarshal(data, &export); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal export metadata %s, skipping", file.Name())
			continue
		}
		export.UserID = userID
		export.Data = nil
		exports = append(exports, &export)
	}

	sort.Slice(exports, func(i, j int) bool {
		if !exports[i].CreatedAt.Equal(exports[j].CreatedAt) {
			return exports[i].CreatedAt.After(exports[j].CreatedAt)
		}
		return exports[i].ID > exports[j].ID
	})

	log.Infof("Listed %d exports", len(exports))
	return exports, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Export, error) {
	_, metaPath, pngPath, err := s.paths(userID, id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "export_id": id, "path": metaPath})

	meta, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Export metadata not found")
			return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		log.WithError(err).Error("Failed to read export metadata")
		return nil, err
	}

	var export core.Export
	if err := json.Unmarshal(meta, &export); err != nil {
		log.WithError(err).Error("Failed to unmarshal export metadata")
		return nil, err
	}

	export.Data, err = os.ReadFile(pngPath)
	if err != nil {
		log.WithError(err).Error("Failed to read export image")
		return nil, err
	}
	export.UserID = userID

	log.Info("Export retrieved successfully")
	return &export, nil
}

func (s *fsStore) Save(ctx context.Context, export *core.Export) error {
	userPath, metaPath, pngPath, err := s.paths(export.UserID, export.ID)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": export.UserID, "export_id": export.ID, "path": metaPath})

	if err := os.MkdirAll(userPath, 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	export.Size = len(export.Data)

	if err := os.WriteFile(pngPath, export.Data, 0644); err != nil {
		log.WithError(err).Error("Failed to write export image")
		return err
	}

	meta := *export
	meta.Data = nil
	data, err := json.Marshal(&meta)
	if err != nil {
		log.WithError(err).Error("Failed to marshal export metadata")
		return err
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write export metadata")
		return err
	}

	log.Info("Export saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	_, metaPath, pngPath, err := s.paths(userID, id)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "export_id": id, "path": metaPath})

	if err := os.Remove(metaPath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Export not found for deletion")
			return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		log.WithError(err).Error("Failed to delete export metadata")
		return err
	}
	if err := os.Remove(pngPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Error("Failed to delete export image")
		return err
	}

	log.Info("Export deleted successfully")
	return nil
}
