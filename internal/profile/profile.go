package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/cce-project/relay/internal/version"
)

const (
	// DefaultModel is the model identifier injected into backend requests when none is configured.
	DefaultModel = "claude-opus-4-20250514"
	// DefaultBackendTimeout bounds a single relay call; long generations on the remote side need minutes.
	DefaultBackendTimeout = 300 * time.Second
	// DefaultMaxUploadBytes bounds multipart parsing memory, not the accepted file size.
	DefaultMaxUploadBytes = 32 << 20

	devSecret = "relay-dev-secret"
)

// Profile is the configuration to start the relay.
// It is built once at startup and never mutated afterwards; changing it requires a restart.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Addr is the binding address for the server.
	Addr string
	// Port is the binding port for the server.
	Port int
	// Data is the data directory.
	Data string
	// Driver is the database driver: sqlite, postgres or mysql.
	Driver string
	// DSN points to where the transcript is stored.
	DSN string
	// Secret signs session and anti-forgery tokens.
	Secret string
	// Version is the current version of the server.
	Version string

	// BackendURL is the base URL of the AI-execution backend.
	BackendURL string
	// BackendAPIKey is the credential injected into every backend request.
	BackendAPIKey string
	// Model is the model identifier injected into every backend request.
	Model string
	// BackendTimeout bounds a single backend call.
	BackendTimeout time.Duration
	// EnableCodeExecution is the default for requests that do not set use_code_execution.
	EnableCodeExecution bool

	// ClientAPIKey is the shared secret key accepted from non-session callers.
	ClientAPIKey string
	// AllowGuests lets the form path accept anonymous callers holding a valid anti-forgery token.
	AllowGuests bool

	// UploadDir is where uploads are staged before the relay call.
	UploadDir string
	// MaxUploadBytes bounds the memory used to parse multipart bodies.
	MaxUploadBytes int64
	// S3 enables S3 staging of uploads when Bucket is set.
	S3 S3Config
}

// S3Config configures the S3 upload stager.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	Prefix       string
}

// Enabled reports whether uploads should be staged in S3.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// checkDataDir resolves a relative dataDir against the working directory,
// creates it when missing and checks that it is accessible.
func checkDataDir(dataDir string) (string, error) {
	absDir, err := filepath.Abs(dataDir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve data folder %s", dataDir)
	}
	dataDir = absDir
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		if err := os.MkdirAll(dataDir, 0770); err != nil {
			return "", errors.Wrapf(err, "failed to create data directory %s", dataDir)
		}
	}
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate fills defaults and rejects configurations the server cannot start with.
// A missing BackendURL is intentionally accepted: it is reported per request.
func (p *Profile) Validate() error {
	if p.Mode == "" {
		p.Mode = "dev"
	}
	if p.Mode != "dev" && p.Mode != "prod" {
		return errors.Errorf("unknown mode %q", p.Mode)
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	switch p.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return errors.Errorf("unknown database driver %q", p.Driver)
	}
	if p.BackendTimeout == 0 {
		p.BackendTimeout = DefaultBackendTimeout
	}
	if p.BackendTimeout < 0 {
		return errors.Errorf("backend timeout must be positive, got %s", p.BackendTimeout)
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.MaxUploadBytes <= 0 {
		p.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if p.Secret == "" {
		if !p.IsDev() {
			return errors.New("a server secret is required in prod mode")
		}
		slog.Warn("no server secret configured, using the development secret")
		p.Secret = devSecret
	}

	if p.Data == "" {
		if p.IsDev() {
			p.Data = "."
		} else if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "relay")
		} else {
			p.Data = "/var/opt/relay"
		}
	}
	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("relay_%s.db", p.Mode))
		}
	} else if p.DSN == "" {
		return errors.Errorf("a dsn is required for the %s driver", p.Driver)
	}

	if p.UploadDir == "" {
		p.UploadDir = os.TempDir()
	}
	if p.Version == "" {
		p.Version = version.GetCurrentVersion(p.Mode)
	}
	return nil
}
