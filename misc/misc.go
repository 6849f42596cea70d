// Package misc keeps build time information about the program.
package misc

// Set by linker flags: -X msx/misc.version=... -X msx/misc.gitHash=...
var (
	version = "dev"
	gitHash = "unknown"
	appName = "msx"
)

// GetAppName returns short program name used for logs and temporary files.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	return version
}

// GetGitHash returns git commit the program was built from.
func GetGitHash() string {
	return gitHash
}
