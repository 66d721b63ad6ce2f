package attachment

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
		err      error
	}{
		{filename: "report.pdf", ext: "pdf"},
		{filename: "FILE.PDF", ext: "pdf"},
		{filename: "data.Csv", ext: "csv"},
		{filename: "sheet.xlsx", ext: "xlsx"},
		{filename: "old.xls", ext: "xls"},
		{filename: "notes.txt", ext: "txt"},
		{filename: "payload.json", ext: "json"},
		{filename: "photo.JPEG", ext: "jpeg"},
		{filename: "photo.jpg", ext: "jpg"},
		{filename: "chart.png", ext: "png"},
		{filename: "archive.tar.pdf", ext: "pdf"},
		{filename: "report.exe", err: ErrFileTypeNotAllowed},
		{filename: "file.exe", err: ErrFileTypeNotAllowed},
		{filename: "pdf", err: ErrFileTypeNotAllowed},
		{filename: "trailing.", err: ErrFileTypeNotAllowed},
		{filename: "script.pdf.sh", err: ErrFileTypeNotAllowed},
		{filename: "", err: ErrNoFile},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			asset, err := Validate(tt.filename, "/tmp/upload")
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				require.Nil(t, asset)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.ext, asset.Extension)
			require.Equal(t, tt.filename, asset.DisplayName)
			require.Equal(t, "/tmp/upload", asset.TempPath)
		})
	}
}

func TestRejectionReason(t *testing.T) {
	_, err := Validate("report.exe", "")
	require.EqualError(t, err, "File type not allowed")
}

func TestLocalStager(t *testing.T) {
	dir := t.TempDir()
	stager := NewLocalStager(dir)

	asset, err := Validate("notes.txt", "")
	require.NoError(t, err)

	release, err := stager.Stage(context.Background(), asset, strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(asset.TempPath))
	require.True(t, strings.HasSuffix(asset.TempPath, ".txt"))

	data, err := os.ReadFile(asset.TempPath)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	release()
	_, err = os.Stat(asset.TempPath)
	require.True(t, os.IsNotExist(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStagerCleansUpOnWriteFailure(t *testing.T) {
	dir := t.TempDir()
	asset, err := Validate("notes.txt", "")
	require.NoError(t, err)

	_, err = NewLocalStager(dir).Stage(context.Background(), asset, failingReader{})
	require.Error(t, err)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, files)
	require.Empty(t, asset.TempPath)
}

type recordingUploader struct {
	key         string
	contentType string
	body        string
}

func (u *recordingUploader) UploadObject(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.key, u.contentType, u.body = key, contentType, string(data)
	return "s3://uploads/" + key, nil
}

func TestS3Stager(t *testing.T) {
	uploader := &recordingUploader{}
	asset, err := Validate("Report.PDF", "")
	require.NoError(t, err)

	release, err := NewS3Stager(uploader, "relay").Stage(context.Background(), asset, strings.NewReader("%PDF"))
	require.NoError(t, err)
	release()

	require.True(t, strings.HasPrefix(uploader.key, "relay/"))
	require.True(t, strings.HasSuffix(uploader.key, "/Report.PDF"))
	require.Equal(t, "application/pdf", uploader.contentType)
	require.Equal(t, "%PDF", uploader.body)
	require.Equal(t, "s3://uploads/"+uploader.key, asset.TempPath)
}
