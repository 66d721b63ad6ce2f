package version

// Version is the service version reported by /healthz and the MCP server.
// It is overridden at build time with -ldflags "-X .../internal/version.Version=...".
var Version = "0.1.0"

// GetCurrentVersion returns the version string for the given mode.
func GetCurrentVersion(mode string) string {
	if mode == "dev" {
		return Version + "-dev"
	}
	return Version
}
