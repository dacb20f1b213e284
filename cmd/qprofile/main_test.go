package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/qprofile/internal/reconciler"
	"github.com/kbukum/qprofile/internal/user"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "watch")
	assert.NotEmpty(t, root.Version)
}

func TestLoadServeConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := `
name: q-profile-vending
server:
  port: 6000
sse:
  capacity: 50
  heartbeat_interval: 10s
login_limit:
  attempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := loadServeConfig(&ServeOptions{ConfigFile: path, Port: 7000})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 50, cfg.SSE.Capacity)
	assert.Equal(t, 10*time.Second, cfg.SSE.HeartbeatInterval)
	assert.Equal(t, 3, cfg.LoginLimit.Attempts)
}

func TestLoadServeConfig_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := loadServeConfig(&ServeOptions{ConfigFile: path})
	assert.Error(t, err)
}

func TestRenderSnapshot(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	renderSnapshot(&buf, reconciler.Snapshot{
		State: reconciler.StatePolling,
		Rows: []user.User{
			{ID: 1, Username: "user1", CreatedAt: created},
			{ID: 12, Username: "grace", CreatedAt: created},
		},
		LastError: errors.New("connection refused"),
		At:        created,
	})

	out := buf.String()
	assert.Contains(t, out, "polling (connection refused), 2 users")
	assert.Contains(t, out, "ID  USERNAME")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "1   user1"), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "12  grace"), lines[3])
}

func TestWatch_InvalidLogLevel(t *testing.T) {
	err := runWatch(t.Context(), &WatchOptions{URL: "http://localhost:1", LogLevel: "loud"},
		strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}
