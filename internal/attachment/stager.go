package attachment

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cce-project/relay/plugin/storage/s3"
)

// Stager places an upload's bytes where the backend can read them.
// The returned release func undoes the staging after the relay call.
type Stager interface {
	Stage(ctx context.Context, asset *Asset, body io.Reader) (release func(), err error)
}

// LocalStager writes uploads to temp files in Dir.
type LocalStager struct {
	Dir string
}

func NewLocalStager(dir string) *LocalStager {
	return &LocalStager{Dir: dir}
}

func (s *LocalStager) Stage(_ context.Context, asset *Asset, body io.Reader) (func(), error) {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create upload directory")
	}
	f, err := os.CreateTemp(s.Dir, "relay-upload-*."+asset.Extension)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create staging file")
	}
	name := f.Name()
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return nil, errors.Wrap(err, "failed to write staging file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return nil, errors.Wrap(err, "failed to close staging file")
	}

	asset.TempPath = name
	return func() {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove staged upload", "path", name, "err", err)
		}
	}, nil
}

// ObjectUploader is the subset of the S3 client used for staging.
type ObjectUploader interface {
	UploadObject(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var _ ObjectUploader = (*s3.Client)(nil)

// S3Stager uploads files to an object store; the backend receives the s3:// URI.
// Objects are left in place for the backend to consume.
type S3Stager struct {
	client ObjectUploader
	prefix string
}

func NewS3Stager(client ObjectUploader, prefix string) *S3Stager {
	return &S3Stager{client: client, prefix: prefix}
}

func (s *S3Stager) Stage(ctx context.Context, asset *Asset, body io.Reader) (func(), error) {
	key := path.Join(s.prefix, uuid.NewString(), path.Base(asset.DisplayName))
	contentType := mime.TypeByExtension("." + asset.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	uri, err := s.client.UploadObject(ctx, key, contentType, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stage upload in object storage")
	}
	asset.TempPath = uri
	return func() {}, nil
}
