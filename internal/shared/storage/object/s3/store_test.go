package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"skill-recommender/internal/shared/storage/object"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "models/m/CURRENT", want: "models/m/CURRENT"},
		{name: "simple prefix", prefix: "root", key: "models/m/CURRENT", want: "root/models/m/CURRENT"},
		{name: "prefix trailing slash", prefix: "root/", key: "models/m/CURRENT", want: "root/models/m/CURRENT"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/models/m/CURRENT", want: "root/models/m/CURRENT"},
		{name: "nested prefix", prefix: "root/sub", key: "models/m/CURRENT", want: "root/sub/models/m/CURRENT"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

// fakeS3 serves list pages of pageSize keys so pagination is exercised.
type fakeS3 struct {
	objects  map[string][]byte
	lastPut  *s3.PutObjectInput
	pageSize int
}

func newFake() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, pageSize: 2}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestPutAndGetWithPrefix(t *testing.T) {
	fake := newFake()
	store := NewWithClient(fake, "bucket", "/artifacts/", "kms-key")
	ctx := context.Background()

	n, err := store.Put(ctx, "models/m/CURRENT", "application/json", strings.NewReader("manifest"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != int64(len("manifest")) {
		t.Fatalf("unexpected size %d", n)
	}
	if _, ok := fake.objects["artifacts/models/m/CURRENT"]; !ok {
		t.Fatalf("expected prefixed key, got %v", fake.objects)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms {
		t.Fatalf("expected kms encryption, got %q", fake.lastPut.ServerSideEncryption)
	}

	rc, err := store.Get(ctx, "models/m/CURRENT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "manifest" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestPutDefaultsToAES(t *testing.T) {
	fake := newFake()
	store := NewWithClient(fake, "bucket", "", "")
	if _, err := store.Put(context.Background(), "k", "", strings.NewReader("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256, got %q", fake.lastPut.ServerSideEncryption)
	}
}

func TestListPaginatesAndStripsPrefix(t *testing.T) {
	fake := newFake()
	store := NewWithClient(fake, "bucket", "artifacts", "")
	ctx := context.Background()
	for _, key := range []string{"models/m/bundles/c", "models/m/bundles/a", "models/m/bundles/b", "models/m/CURRENT", "models/mx/bundles/z"} {
		if _, err := store.Put(ctx, key, "", strings.NewReader("x")); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	keys, err := store.List(ctx, "models/m/bundles/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"models/m/bundles/a", "models/m/bundles/b", "models/m/bundles/c"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, keys)
	}

	if err := store.Delete(ctx, "models/m/bundles/a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "models/m/bundles/a"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected deleted object to be gone, got %v", err)
	}
}

func TestGetMissingMapsToNotFound(t *testing.T) {
	store := NewWithClient(newFake(), "bucket", "", "")
	_, err := store.Get(context.Background(), "models/m/CURRENT")
	if !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
