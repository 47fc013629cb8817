package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	k := Load([]string{"--cmd", "sync"})

	assert.Equal(t, "sync", k.String(CMD))
	assert.Equal(t, "info", k.String(LOG_LEVEL))
	assert.Equal(t, "tasksync.db", k.String(STORE_PATH))
	assert.Equal(t, "CalDAV", k.String(CALDAV_PROVIDER))
	assert.Equal(t, 2*time.Second, k.Duration(SYNC_BACKOFF))
	assert.False(t, k.Bool(SYNC_SILENT))
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("TASKSYNC_CALDAV_URL", "https://dav.example.com/")
	t.Setenv("TASKSYNC_CALDAV_USER", "env-user")
	t.Setenv("TASKSYNC_SECRET_CALDAV", "s3cret")

	k := Load([]string{"--caldav.user", "flag-user", "--sync.silent"})

	assert.Equal(t, "https://dav.example.com/", k.String(CALDAV_URL))
	assert.Equal(t, "flag-user", k.String(CALDAV_USER))
	assert.True(t, k.Bool(SYNC_SILENT))

	creds := NewCredentials(k)
	assert.Equal(t, "https://dav.example.com/", creds.URL())
	assert.Equal(t, "flag-user", creds.Username())
	assert.Equal(t, "s3cret", creds.Secret("CalDAV"))
}

func TestCredentialsSecretFallback(t *testing.T) {
	k := Load([]string{"--caldav.pass", "pw"})
	creds := NewCredentials(k)

	assert.Equal(t, "pw", creds.Secret("Nextcloud"))
	require.Empty(t, creds.URL())
}
