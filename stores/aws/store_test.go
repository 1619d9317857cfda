package aws

import (
	"bytes"
	"caption-studio/core"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data     []byte
	metadata map[string]string
}

// Mock S3 bucket kept in memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{data: data, metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.data)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		Metadata:      obj.metadata,
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	keys := []string{}
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, key := range keys {
		out.Contents = append(out.Contents, s3types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[key].data))),
		})
	}
	return out, nil
}

func TestSaveAndGet(t *testing.T) {
	fake := newFakeS3()
	store := newStoreWithClient(fake, "bucket")
	ctx := context.Background()

	export := &core.Export{
		ID:      "01EXPORT",
		UserID:  "alice",
		SceneID: "scene-1",
		Name:    "canvas-image.png",
		Caption: "café at dusk",
		Data:    []byte("\x89PNG fake"),
	}
	if err := store.Save(ctx, export); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, ok := fake.objects["alice/01EXPORT.png"]; !ok {
		t.Fatalf("object not stored under user prefix, keys: %v", fake.objects)
	}

	got, err := store.Get(ctx, "alice", "01EXPORT")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if string(got.Data) != string(export.Data) {
		t.Errorf("Data mismatch: got %q", got.Data)
	}
	if got.Caption != "café at dusk" {
		t.Errorf("Caption = %q", got.Caption)
	}
	if !got.CreatedAt.Equal(export.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, export.CreatedAt)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := newStoreWithClient(newFakeS3(), "bucket")
	if _, err := store.Get(context.Background(), "alice", "missing"); !errors.Is(err, core.ErrExportNotFound) {
		t.Errorf("Get() error = %v, want ErrExportNotFound", err)
	}
}

func TestExportKey_RejectsPaths(t *testing.T) {
	for _, id := range []string{"", ".", "..", "a/b", "../x"} {
		if _, err := exportKey("alice", id); err == nil {
			t.Errorf("exportKey(%q) should fail", id)
		}
	}
	key, err := exportKey("alice", "01X")
	if err != nil || key != "alice/01X.png" {
		t.Errorf("exportKey() = %q, %v", key, err)
	}
}

func TestList(t *testing.T) {
	store := newStoreWithClient(newFakeS3(), "bucket")
	ctx := context.Background()
	base := time.Now()

	store.Save(ctx, &core.Export{ID: "old", UserID: "alice", Data: []byte("1"), CreatedAt: base.Add(-time.Hour)})
	store.Save(ctx, &core.Export{ID: "new", UserID: "alice", Data: []byte("22"), CreatedAt: base})
	store.Save(ctx, &core.Export{ID: "x", UserID: "bob", Data: []byte("3")})

	list, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d exports, want 2", len(list))
	}
	if list[0].ID != "new" || list[1].ID != "old" {
		t.Errorf("order = [%s %s]", list[0].ID, list[1].ID)
	}
	if list[0].Size != 2 || list[0].Data != nil {
		t.Errorf("list entry = %+v", list[0])
	}
}

func TestDelete(t *testing.T) {
	fake := newFakeS3()
	store := newStoreWithClient(fake, "bucket")
	ctx := context.Background()

	store.Save(ctx, &core.Export{ID: "a", UserID: "alice", Data: []byte("x")})

	if err := store.Delete(ctx, "alice", "a"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Error("object still present after Delete()")
	}
	if err := store.Delete(ctx, "alice", "a"); !errors.Is(err, core.ErrExportNotFound) {
		t.Errorf("second Delete() error = %v, want ErrExportNotFound", err)
	}
}
