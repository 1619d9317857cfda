package memory

import (
	"caption-studio/core"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// memStore keeps exports in a map keyed by user ID, then export ID.
type memStore struct {
	mu      sync.RWMutex
	exports map[string]map[string]*core.Export
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{exports: make(map[string]map[string]*core.Export)}
}

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userExports := s.exports[userID]
	exports := make([]*core.Export, 0, len(userExports))
	for _, e := range userExports {
		// list views never carry the PNG bytes
		listed := *e
		listed.Data = nil
		exports = append(exports, &listed)
	}
	sortNewestFirst(exports)

	logrus.WithField("user_id", userID).Infof("Listed %d exports", len(exports))
	return exports, nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "export_id": id})

	e, ok := s.exports[userID][id]
	if !ok {
		log.Warn("Export not found for user")
		return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
	}

	log.Info("Export retrieved successfully")
	found := *e
	return &found, nil
}

func (s *memStore) Save(ctx context.Context, export *core.Export) error {
	if export.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if export.ID == "" {
		return fmt.Errorf("Export ID cannot be empty for save operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userExports, ok := s.exports[export.UserID]
	if !ok {
		userExports = make(map[string]*core.Export)
		s.exports[export.UserID] = userExports
	}

	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	export.Size = len(export.Data)
	stored := *export
	userExports[export.ID] = &stored

	logrus.WithFields(logrus.Fields{
		"user_id":   export.UserID,
		"export_id": export.ID,
		"size":      export.Size,
	}).Info("Export saved successfully")
	return nil
}

func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"user_id": userID, "export_id": id})

	if _, ok := s.exports[userID][id]; !ok {
		log.Warn("Export not found for deletion")
		return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
	}

	delete(s.exports[userID], id)
	log.Info("Export deleted successfully")
	return nil
}

func sortNewestFirst(exports []*core.Export) {
	sort.Slice(exports, func(i, j int) bool {
		if !exports[i].CreatedAt.Equal(exports[j].CreatedAt) {
			return exports[i].CreatedAt.After(exports[j].CreatedAt)
		}
		return exports[i].ID > exports[j].ID
	})
}
