package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommands(t *testing.T) {
	cmds := Commands()
	assert.Len(t, cmds, 5)
	assert.Contains(t, cmds, CmdRun)
	assert.Contains(t, cmds, CmdVersion)
}

func TestUserAgent(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })
	Version = "1.4.0"
	assert.Equal(t, "errmgr/1.4.0", UserAgent())
}
