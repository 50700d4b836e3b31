package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func readAll(t *testing.T, store BlobStore, key string) string {
	t.Helper()
	rc, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(b)
}

func TestLocalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	if err := store.Put(ctx, "pending/a.jpg", "image/jpeg", strings.NewReader("photo"), 5); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if got := readAll(t, store, "pending/a.jpg"); got != "photo" {
		t.Errorf("content = %q", got)
	}

	if err := store.Move(ctx, "pending/a.jpg", "approved/a.jpg"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if _, err := store.Get(ctx, "pending/a.jpg"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("source still present after move: %v", err)
	}
	if got := readAll(t, store, "approved/a.jpg"); got != "photo" {
		t.Errorf("moved content = %q", got)
	}

	if err := store.Delete(ctx, "approved/a.jpg"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "approved/a.jpg"); err != nil {
		t.Errorf("deleting a missing blob should succeed: %v", err)
	}
	if err := store.Move(ctx, "pending/missing.jpg", "approved/missing.jpg"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("moving a missing blob = %v, want ErrBlobNotFound", err)
	}
}

func TestCleanKeyRejectsTraversal(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"pending/a.jpg", false},
		{"a.jpg", false},
		{"", true},
		{"/etc/passwd", true},
		{"../secret", true},
		{"pending/../../secret", true},
		{"pending//a.jpg", true},
		{`pending\a.jpg`, true},
		{"..", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			_, err := cleanKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("cleanKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

type fakeS3 struct {
	objects map[string][]byte
	copies  []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := aws.ToString(in.CopySource)
	b, ok := f.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.copies = append(f.copies, src)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreUsesPrefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3Store(fake, "family-photos", "tree")

	if err := store.Put(ctx, "pending/a.png", "image/png", strings.NewReader("png"), 3); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := fake.objects["family-photos/tree/pending/a.png"]; !ok {
		t.Fatalf("object stored under wrong key: %v", fake.objects)
	}

	if err := store.Move(ctx, "pending/a.png", "approved/a.png"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if len(fake.copies) != 1 || fake.copies[0] != "family-photos/tree/pending/a.png" {
		t.Errorf("copy source = %v", fake.copies)
	}
	if _, ok := fake.objects["family-photos/tree/pending/a.png"]; ok {
		t.Error("source object should be deleted after move")
	}
	if got := readAll(t, store, "approved/a.png"); got != "png" {
		t.Errorf("content = %q", got)
	}

	if _, err := store.Get(ctx, "pending/a.png"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Get missing = %v, want ErrBlobNotFound", err)
	}
	if err := store.Put(ctx, "../escape", "image/png", strings.NewReader("x"), 1); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put with traversal = %v, want ErrInvalidKey", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(context.Background(), Options{Backend: "local", LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New(local) failed: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("New(local) returned %T", store)
	}
	if _, err := New(context.Background(), Options{Backend: "ftp"}); err == nil {
		t.Error("unknown backend should fail")
	}
	if _, err := New(context.Background(), Options{Backend: "s3"}); err == nil {
		t.Error("s3 without a bucket should fail")
	}
}
