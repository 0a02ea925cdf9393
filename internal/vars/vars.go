// Package vars carries build metadata set with -ldflags -X.
package vars

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	Name    = "a2sprobe"
	URL     = "https://github.com/woozymasta/a2sprobe"
	License = "AGPL-3.0"
)

// Set by the linker. Revision and BuildTime are derived from revision and
// buildTime, which must be a commit count and an RFC3339 time.
var (
	Version   = "dev"
	Commit    = "unknown"
	Revision  int
	BuildTime time.Time

	revision  string
	buildTime string
)

func init() {
	Revision, _ = strconv.Atoi(revision)
	if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
		BuildTime = t.UTC()
	}
}

// BuildInfo is the /api/version payload.
type BuildInfo struct {
	BuildTime   time.Time `json:"build_time,omitzero"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Commit      string    `json:"commit"`
	CommitShort string    `json:"commit_short,omitempty"`
	URL         string    `json:"url,omitempty"`
	License     string    `json:"license,omitempty"`
	Revision    int       `json:"revision,omitempty"`
}

// Info returns the build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		URL:         URL,
		License:     License,
	}
}

// String renders the version line printed by --version, e.g.
// "a2sprobe v1.2.0 (da15c17, r42, 2026-01-02T03:04:05Z)".
func (b BuildInfo) String() string {
	s := b.Name + " " + b.Version + " (" + b.CommitShort
	if b.Revision > 0 {
		s += ", r" + strconv.Itoa(b.Revision)
	}
	if !b.BuildTime.IsZero() {
		s += ", " + b.BuildTime.Format(time.RFC3339)
	}

	return s + ")"
}

// Print writes the version line, then the repository and license.
func Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s\n%s %s\n", Info(), URL, License)
}

// UserAgent identifies outgoing HTTP requests, such as GeoIP downloads.
func UserAgent() string {
	return Name + "/" + Version
}

// CommitShort returns the first 7 characters of the commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
