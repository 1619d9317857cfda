package core

import (
	"context"
	"errors"
	"time"
)

// ErrExportNotFound is returned by stores when an export does not exist for
// the requesting user.
var ErrExportNotFound = errors.New("export not found")

type (
	// Export is a rendered scene saved to a user's gallery.
	Export struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		SceneID   string    `json:"sceneId"`
		Name      string    `json:"name"`
		Caption   string    `json:"caption,omitempty"`
		Data      []byte    `json:"data,omitempty"` // PNG bytes, omitted in list views.
		Size      int       `json:"size"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// ExportStore persists exports. All operations are scoped to a user.
	ExportStore interface {
		// List returns exports owned by a user without their Data, newest first.
		List(ctx context.Context, userID string) ([]*Export, error)

		Get(ctx context.Context, userID, id string) (*Export, error)

		// Save stores a new export. ID and UserID must be set.
		Save(ctx context.Context, export *Export) error

		Delete(ctx context.Context, userID, id string) error
	}
)
