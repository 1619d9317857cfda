package aws

import (
	"bytes"
	"caption-studio/core"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// Metadata keys stored on every export object.
const (
	metaSceneID   = "scene-id"
	metaName      = "name"
	metaCaption   = "caption"
	metaCreatedAt = "created-at"
)

// s3API is the subset of the S3 client used by the store.
type s3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Store struct {
	s3Client s3API
	bucket   string
}

// NewStore creates a new S3-based store using the default AWS credential
// chain.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		logrus.Fatalf("unable to load SDK config, %v", err)
	}

	return newStoreWithClient(s3.NewFromConfig(cfg), bucketName)
}

func newStoreWithClient(client s3API, bucketName string) *s3Store {
	return &s3Store{
		s3Client: client,
		bucket:   bucketName,
	}
}

// exportKey returns <user>/<id>.png, rejecting ids that would form a path.
func exportKey(userID, id string) (string, error) {
	if path.Base(id) != id || path.Base(userID) != userID {
		return "", fmt.Errorf("invalid export id: must not be a path")
	}
	if id == "" || id == "." || id == ".." || userID == "" {
		return "", fmt.Errorf("invalid export id: must not be empty or a dot directory")
	}
	return path.Join(userID, id+".png"), nil
}

func encodeMetadata(e *core.Export) map[string]string {
	return map[string]string{
		metaSceneID:   e.SceneID,
		metaName:      url.QueryEscape(e.Name),
		metaCaption:   url.QueryEscape(e.Caption),
		metaCreatedAt: strconv.FormatInt(e.CreatedAt.UnixNano(), 10),
	}
}

func decodeMetadata(e *core.Export, meta map[string]string) {
	e.SceneID = meta[metaSceneID]
	e.Name, _ = url.QueryUnescape(meta[metaName])
	e.Caption, _ = url.QueryUnescape(meta[metaCaption])
	if ns, err := strconv.ParseInt(meta[metaCreatedAt], 10, 64); err == nil {
		e.CreatedAt = time.Unix(0, ns)
	}
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Export, error) {
	log := logrus.WithField("user_id", userID)

	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(userID + "/"),
	})

	exports := []*core.Export{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list exports for user %s: %w", userID, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			head, err := s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    object.Key,
			})
			if err != nil {
				log.WithError(err).Warnf("Failed to head object %s, skipping", key)
				continue
			}

			export := &core.Export{
				ID:     strings.TrimSuffix(path.Base(key), ".png"),
				UserID: userID,
				Size:   int(aws.ToInt64(object.Size)),
			}
			decodeMetadata(export, head.Metadata)
			exports = append(exports, export)
		}
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

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Export, error) {
	key, err := exportKey(userID, id)
	if err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		return nil, fmt.Errorf("failed to get export %s: %w", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export data: %w", err)
	}

	export := &core.Export{ID: id, UserID: userID, Data: data, Size: len(data)}
	decodeMetadata(export, resp.Metadata)
	return export, nil
}

func (s *s3Store) Save(ctx context.Context, export *core.Export) error {
	key, err := exportKey(export.UserID, export.ID)
	if err != nil {
		return err
	}
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	export.Size = len(export.Data)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(export.Data),
		ContentType: aws.String("image/png"),
		Metadata:    encodeMetadata(export),
	})
	if err != nil {
		return fmt.Errorf("failed to save export %s: %w", export.ID, err)
	}

	logrus.WithFields(logrus.Fields{"user_id": export.UserID, "export_id": export.ID, "key": key}).Info("Export saved successfully")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	key, err := exportKey(userID, id)
	if err != nil {
		return err
	}

	// DeleteObject succeeds for missing keys, so check first.
	_, err = s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return fmt.Errorf("%w: %s", core.ErrExportNotFound, id)
		}
		return fmt.Errorf("failed to check export %s: %w", id, err)
	}

	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete export %s: %w", id, err)
	}
	return nil
}
