// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/coursematch/coursematch-web/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/coursematch/coursematch-web/internal/buildinfo.Commit=...
var Commit = ""

// Release returns the identifier reported to error tracking, "dev" for
// local builds.
func Release() string {
	switch {
	case Version != "" && Commit != "":
		return Version + "+" + Commit
	case Version != "":
		return Version
	case Commit != "":
		return Commit
	}
	return "dev"
}
