package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cce-project/relay/internal/profile"
	"github.com/cce-project/relay/internal/version"
	"github.com/cce-project/relay/server"
	"github.com/cce-project/relay/server/auth"
	"github.com/cce-project/relay/server/router/mcp"
	"github.com/cce-project/relay/store"
	"github.com/cce-project/relay/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "relay",
		Short: `A relay between a chat widget and an AI-execution backend that records the transcript.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the relay HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Print a new shared client API key",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), newClientAPIKey())
		},
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Print a session token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := newProfile()
			if err != nil {
				return err
			}
			userID, _ := cmd.Flags().GetString("user")
			admin, _ := cmd.Flags().GetBool("admin")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			authenticator := auth.NewAuthenticator(instanceProfile.Secret, instanceProfile.ClientAPIKey, instanceProfile.AllowGuests)
			token, err := authenticator.IssueSessionToken(userID, admin, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only transcript tools over MCP stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := newProfile()
			if err != nil {
				return err
			}
			storeInstance, err := openStore(cmd.Context(), instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()
			return mcp.NewMCPService(storeInstance, instanceProfile.Version).ServeStdio()
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("model", profile.DefaultModel)
	viper.SetDefault("backend-timeout", profile.DefaultBackendTimeout)
	viper.SetDefault("enable-code-execution", true)
	viper.SetDefault("max-upload-bytes", profile.DefaultMaxUploadBytes)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (any format viper reads)")
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver: sqlite, postgres or mysql")
	flags.String("dsn", "", "database source name")
	flags.String("secret", "", "secret signing session and form tokens")
	flags.String("backend-url", "", "base URL of the AI-execution backend")
	flags.String("backend-api-key", "", "credential injected into backend requests")
	flags.String("model", profile.DefaultModel, "model identifier injected into backend requests")
	flags.Duration("backend-timeout", profile.DefaultBackendTimeout, "timeout of a single backend call")
	flags.Bool("enable-code-execution", true, "default for requests without use_code_execution")
	flags.String("client-api-key", "", "shared secret key accepted from non-session callers")
	flags.Bool("allow-guests", false, "accept anonymous form callers holding a valid form token")
	flags.String("upload-dir", "", "directory uploads are staged in")
	flags.Int64("max-upload-bytes", profile.DefaultMaxUploadBytes, "memory bound for parsing multipart bodies")
	flags.String("s3-endpoint", "", "S3 endpoint for upload staging")
	flags.String("s3-region", "", "S3 region")
	flags.String("s3-bucket", "", "S3 bucket; enables S3 upload staging")
	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.Bool("s3-use-path-style", false, "use path-style S3 addressing")
	flags.String("s3-prefix", "relay", "S3 key prefix for staged uploads")

	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("relay")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	tokenCmd.Flags().String("user", "", "user id the token is issued to")
	tokenCmd.Flags().Bool("admin", false, "grant the admin role")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, keygenCmd, tokenCmd, mcpCmd)
}

func loadConfig() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to load .env")
	}
	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", file)
		}
	}
	setupLogger(viper.GetString("mode"))
	return nil
}

// setupLogger writes to stderr so that stdout stays free for command output and MCP stdio.
func setupLogger(mode string) {
	var handler slog.Handler
	if mode == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))
}

func newProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:                viper.GetString("mode"),
		Addr:                viper.GetString("addr"),
		Port:                viper.GetInt("port"),
		Data:                viper.GetString("data"),
		Driver:              viper.GetString("driver"),
		DSN:                 viper.GetString("dsn"),
		Secret:              viper.GetString("secret"),
		BackendURL:          viper.GetString("backend-url"),
		BackendAPIKey:       viper.GetString("backend-api-key"),
		Model:               viper.GetString("model"),
		BackendTimeout:      viper.GetDuration("backend-timeout"),
		EnableCodeExecution: viper.GetBool("enable-code-execution"),
		ClientAPIKey:        viper.GetString("client-api-key"),
		AllowGuests:         viper.GetBool("allow-guests"),
		UploadDir:           viper.GetString("upload-dir"),
		MaxUploadBytes:      viper.GetInt64("max-upload-bytes"),
		Version:             version.GetCurrentVersion(viper.GetString("mode")),
		S3: profile.S3Config{
			Endpoint:     viper.GetString("s3-endpoint"),
			Region:       viper.GetString("s3-region"),
			Bucket:       viper.GetString("s3-bucket"),
			AccessKey:    viper.GetString("s3-access-key"),
			SecretKey:    viper.GetString("s3-secret-key"),
			UsePathStyle: viper.GetBool("s3-use-path-style"),
			Prefix:       viper.GetString("s3-prefix"),
		},
	}
	if err := instanceProfile.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return instanceProfile, nil
}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return storeInstance, nil
}

func serve(ctx context.Context) error {
	instanceProfile, err := newProfile()
	if err != nil {
		return err
	}
	storeInstance, err := openStore(ctx, instanceProfile)
	if err != nil {
		return err
	}
	s, err := server.NewServer(ctx, instanceProfile, storeInstance)
	if err != nil {
		_ = storeInstance.Close()
		return errors.Wrap(err, "failed to create server")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Start(ctx)
}

// newClientAPIKey returns a random shared key of at least 32 characters.
func newClientAPIKey() string {
	return "cce_" + shortuuid.New() + shortuuid.New()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
