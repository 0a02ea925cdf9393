package vars

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfoString(t *testing.T) {
	b := BuildInfo{Name: Name, Version: "v1.2.0", CommitShort: "da15c17"}
	assert.Equal(t, "a2sprobe v1.2.0 (da15c17)", b.String())

	b.Revision = 42
	b.BuildTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "a2sprobe v1.2.0 (da15c17, r42, 2026-01-02T03:04:05Z)", b.String())
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	Print(&out)

	assert.Equal(t, Info().String()+"\n"+URL+" "+License+"\n", out.String())
}

func TestCommitShort(t *testing.T) {
	saved := Commit
	t.Cleanup(func() { Commit = saved })

	Commit = "da15c174cd2ada1ad247906536c101e8f6799def"
	assert.Equal(t, "da15c17", CommitShort())

	Commit = "abc"
	assert.Equal(t, "abc", CommitShort())
	assert.Equal(t, "a2sprobe/"+Version, UserAgent())
}
