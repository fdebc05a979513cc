// Package buildinfo carries version metadata stamped in at link time:
//
//	go build -ldflags "-X 'github.com/m3rciful/quizbot/core/buildinfo.Version=v0.3.0' \
//	  -X 'github.com/m3rciful/quizbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)'"
package buildinfo

var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the short commit hash.
	Commit = "local"
	// Date is the build timestamp in RFC3339.
	Date = ""
)

// String renders the build metadata in a single token for logs and /help.
func String() string {
	if Date == "" {
		return Version + "+" + Commit
	}
	return Version + "+" + Commit + " (" + Date + ")"
}
