package sqlite

import (
	"caption-studio/core"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens dataSourceName with the pure-Go sqlite driver and creates
// the exports table when missing.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		logrus.Fatalf("failed to open sqlite database: %v", err)
	}

	exportTableStmt := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		scene_id TEXT,
		name TEXT,
		caption TEXT,
		data BLOB,
		size INTEGER,
		created_at INTEGER,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(exportTableStmt); err != nil {
		logrus.Fatalf("failed to create exports table: %v", err)
	}

	return &sqliteStore{db}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, scene_id, name, caption, size, created_at FROM exports WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to list exports")
		return nil, err
	}
	defer rows.Close()

	exports := []*core.Export{}
	for rows.Next() {
		var (
			export    core.Export
			createdAt int64
		)
		export.UserID = userID
		if err := rows.Scan(&export.ID, &export.SceneID, &export.Name, &export.Caption, &export.Size, &createdAt); err != nil {
			return nil, err
		}
		export.CreatedAt = time.Unix(0, createdAt)
		exports = append(exports, &export)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logrus.WithField("user_id", userID).Infof("Listed %d exports", len(exports))
	return exports, nil
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Export, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "export_id": id})

	var (
		export    core.Export
		createdAt int64
	)
	export.UserID = userID
	export.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT scene_id, name, caption, data, size, created_at FROM exports WHERE user_id = ? AND id = ?",
		userID, id).Scan(&export.SceneID, &export.Name, &export.Caption, &export.Data, &export.Size, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Export not found for user")
			return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		log.WithError(err).Error("Failed to retrieve export")
		return nil, err
	}
	export.CreatedAt = time.Unix(0, createdAt)

	log.Info("Export retrieved successfully")
	return &export, nil
}

func (s *sqliteStore) Save(ctx context.Context, export *core.Export) error {
	if export.UserID == "" || export.ID == "" {
		return fmt.Errorf("export requires both UserID and ID")
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	export.Size = len(export.Data)

	log := logrus.WithFields(logrus.Fields{
		"user_id":   export.UserID,
		"export_id": export.ID,
		"size":      export.Size,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO exports (id, user_id, scene_id, name, caption, data, size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		export.ID, export.UserID, export.SceneID, export.Name, export.Caption, export.Data, export.Size, export.CreatedAt.UnixNano())
	if err != nil {
		log.WithError(err).Error("Failed to save export")
		return err
	}

	log.Info("Export saved successfully")
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "export_id": id})

	res, err := s.db.ExecContext(ctx, "DELETE FROM exports WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		log.WithError(err).Error("Failed to delete export")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Warn("Export not found for deletion")
		return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
	}

	log.Info("Export deleted successfully")
	return nil
}
