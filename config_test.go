package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/domain"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"NOTION_API_KEY":      "secret_x",
		"NOTION_DB_MAIN":      "db-main",
		"NOTION_DB_OTHER":     "db-other",
		"NOTION_DB_TODO":      "db-todo",
		"SUPABASE_JWT_SECRET": "jwt",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(envOf(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "Asia/Seoul", cfg.Location.String())
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.DeduperTTL)
	assert.Equal(t, map[domain.Collection]string{
		domain.Main:  "db-main",
		domain.Other: "db-other",
		domain.Todo:  "db-todo",
	}, cfg.Databases)
	assert.False(t, cfg.registryEnabled())
	assert.Empty(t, cfg.Admins)
}

func TestLoadConfigOverrides(t *testing.T) {
	env := baseEnv()
	env["TASKFLOW_TZ"] = "UTC"
	env["TASKFLOW_FETCH_TIMEOUT"] = "3s"
	env["NOTION_DB_EVENTS"] = " db-events "
	env["FUNCTIONS_CUSTOMHANDLER_PORT"] = "7071"
	env["STORAGE_CONNECTION_STRING"] = "UseDevelopmentStorage=true"
	env["ADMIN_SUBJECTS"] = "a, b,,"
	env["DEBUG"] = "true"

	cfg, err := loadConfig(envOf(env))
	require.NoError(t, err)

	assert.Equal(t, "7071", cfg.Port)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "db-events", cfg.Databases[domain.Events])
	assert.True(t, cfg.registryEnabled())
	assert.Equal(t, "users", cfg.UsersTable)
	assert.Equal(t, "signups", cfg.SignupQueue)
	assert.Equal(t, []string{"a", "b"}, cfg.Admins)
	assert.True(t, cfg.Debug)
}

func TestLoadConfigRejects(t *testing.T) {
	tests := map[string]func(map[string]string){
		"missing token":    func(e map[string]string) { delete(e, "NOTION_API_KEY") },
		"missing todo db":  func(e map[string]string) { delete(e, "NOTION_DB_TODO") },
		"bad timezone":     func(e map[string]string) { e["TASKFLOW_TZ"] = "Mars/Olympus" },
		"bad duration":     func(e map[string]string) { e["TASKSET_CACHE_TTL"] = "soon" },
		"negative ttl":     func(e map[string]string) { e["DEDUPER_TTL"] = "-1m" },
		"no token checker": func(e map[string]string) { delete(e, "SUPABASE_JWT_SECRET") },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			mutate(env)
			_, err := loadConfig(envOf(env))
			assert.Error(t, err)
		})
	}
}

func TestNewRedisClientConnectionStrings(t *testing.T) {
	assert.Nil(t, newRedisClient(""))

	rc := newRedisClient("cache.example:6380,password=pw,ssl=True,abortConnect=False")
	t.Cleanup(func() { _ = rc.Close() })
	opts := rc.Options()
	assert.Equal(t, "cache.example:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.NotNil(t, opts.TLSConfig)

	rc2 := newRedisClient("redis://localhost:6379/2")
	t.Cleanup(func() { _ = rc2.Close() })
	assert.Equal(t, 2, rc2.Options().DB)
}
