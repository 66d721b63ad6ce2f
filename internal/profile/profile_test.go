package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	p := &Profile{Data: dir}
	require.NoError(t, p.Validate())

	require.Equal(t, "dev", p.Mode)
	require.Equal(t, "sqlite", p.Driver)
	require.Equal(t, filepath.Join(dir, "relay_dev.db"), p.DSN)
	require.Equal(t, DefaultModel, p.Model)
	require.Equal(t, DefaultBackendTimeout, p.BackendTimeout)
	require.Equal(t, int64(DefaultMaxUploadBytes), p.MaxUploadBytes)
	require.NotEmpty(t, p.Secret)
	require.NotEmpty(t, p.UploadDir)
	require.Equal(t, "0.1.0-dev", p.Version)
}

func TestValidateResolvesRelativeDataDirAgainstWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	p := &Profile{Mode: "dev", Data: "reldata"}
	require.NoError(t, p.Validate())

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(wd, "reldata"), p.Data)
	require.Equal(t, filepath.Join(wd, "reldata", "relay_dev.db"), p.DSN)
	info, err := os.Stat(filepath.Join(dir, "reldata"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	p := &Profile{
		Mode:           "prod",
		Driver:         "postgres",
		DSN:            "postgres://relay@localhost/relay",
		Secret:         "s3cret",
		Model:          "claude-3-5-haiku-20241022",
		BackendTimeout: 5 * time.Second,
		Data:           t.TempDir(),
	}
	require.NoError(t, p.Validate())
	require.Equal(t, "claude-3-5-haiku-20241022", p.Model)
	require.Equal(t, 5*time.Second, p.BackendTimeout)
	require.Equal(t, "s3cret", p.Secret)
	require.False(t, p.IsDev())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
	}{
		{name: "unknown mode", profile: Profile{Mode: "staging"}},
		{name: "unknown driver", profile: Profile{Driver: "oracle"}},
		{name: "negative timeout", profile: Profile{BackendTimeout: -time.Second}},
		{name: "prod without secret", profile: Profile{Mode: "prod", Driver: "mysql", DSN: "relay@/relay"}},
		{name: "postgres without dsn", profile: Profile{Driver: "postgres", Secret: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.profile
			p.Data = t.TempDir()
			require.Error(t, p.Validate())
		})
	}
}

func TestValidateAllowsMissingBackendURL(t *testing.T) {
	p := &Profile{Data: t.TempDir()}
	require.NoError(t, p.Validate())
	require.Empty(t, p.BackendURL)
}

func TestS3Enabled(t *testing.T) {
	require.False(t, S3Config{}.Enabled())
	require.True(t, S3Config{Bucket: "uploads"}.Enabled())
}
