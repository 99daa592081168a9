package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"taskflow/aggregate"
	"taskflow/domain"
)

const defaultTimeZone = "Asia/Seoul"

var databaseEnv = map[domain.Collection]string{
	domain.Main:    "NOTION_DB_MAIN",
	domain.Other:   "NOTION_DB_OTHER",
	domain.Todo:    "NOTION_DB_TODO",
	domain.Journal: "NOTION_DB_JOURNAL",
	domain.Records: "NOTION_DB_RECORDS",
	domain.Events:  "NOTION_DB_EVENTS",
}

type config struct {
	Debug     bool
	LogFormat string
	Port      string

	NotionToken   string
	NotionBaseURL string
	Databases     map[domain.Collection]string
	SchemaPath    string
	Location      *time.Location
	FetchTimeout  time.Duration

	RedisConn  string
	CacheTTL   time.Duration
	DeduperTTL time.Duration

	JWTSecret    string
	JWKSURL      string
	Audience     string
	Issuer       string
	JWKSCacheTTL time.Duration

	StorageConn string
	UsersTable  string
	SignupQueue string
	Admins      []string
}

// registryEnabled reports whether the approval registry is configured.
func (c config) registryEnabled() bool {
	return c.StorageConn != ""
}

// loadConfig reads the environment through getenv.
func loadConfig(getenv func(string) string) (config, error) {
	cfg := config{
		LogFormat:     strings.ToLower(getenv("LOG_FORMAT")),
		NotionToken:   getenv("NOTION_API_KEY"),
		NotionBaseURL: getenv("NOTION_BASE_URL"),
		SchemaPath:    getenv("TASKFLOW_SCHEMA"),
		RedisConn:     getenv("REDIS_CONNECTION_STRING"),
		JWTSecret:     getenv("SUPABASE_JWT_SECRET"),
		JWKSURL:       getenv("AUTH_JWKS_URL"),
		Audience:      getenv("AUTH_AUDIENCE"),
		Issuer:        getenv("AUTH_ISSUER"),
		StorageConn:   getenv("STORAGE_CONNECTION_STRING"),
		UsersTable:    getenv("USERS_TABLE"),
		SignupQueue:   getenv("SIGNUP_QUEUE"),
		Databases:     map[domain.Collection]string{},
	}
	if dbg, err := strconv.ParseBool(getenv("DEBUG")); err == nil && dbg {
		cfg.Debug = true
	}

	cfg.Port = "8080"
	if v := getenv("FUNCTIONS_CUSTOMHANDLER_PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}

	if cfg.NotionToken == "" {
		return config{}, errors.New("missing NOTION_API_KEY")
	}
	for coll, env := range databaseEnv {
		if id := strings.TrimSpace(getenv(env)); id != "" {
			cfg.Databases[coll] = id
		}
	}
	for _, coll := range domain.TaskSources {
		if cfg.Databases[coll] == "" {
			return config{}, fmt.Errorf("missing %s", databaseEnv[coll])
		}
	}

	tz := getenv("TASKFLOW_TZ")
	if tz == "" {
		tz = defaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return config{}, fmt.Errorf("invalid TASKFLOW_TZ: %w", err)
	}
	cfg.Location = loc

	for _, d := range []struct {
		env string
		dst *time.Duration
		def time.Duration
	}{
		{"TASKFLOW_FETCH_TIMEOUT", &cfg.FetchTimeout, aggregate.DefaultFetchTimeout},
		{"TASKSET_CACHE_TTL", &cfg.CacheTTL, 30 * time.Second},
		{"DEDUPER_TTL", &cfg.DeduperTTL, 24 * time.Hour},
		{"JWKS_CACHE_TTL", &cfg.JWKSCacheTTL, 15 * time.Minute},
	} {
		if *d.dst, err = durationEnv(getenv, d.env, d.def); err != nil {
			return config{}, err
		}
	}

	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return config{}, errors.New("missing SUPABASE_JWT_SECRET or AUTH_JWKS_URL")
	}

	if cfg.registryEnabled() {
		if cfg.UsersTable == "" {
			cfg.UsersTable = "users"
		}
		if cfg.SignupQueue == "" {
			cfg.SignupQueue = "signups"
		}
	}
	for _, s := range strings.Split(getenv("ADMIN_SUBJECTS"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Admins = append(cfg.Admins, s)
		}
	}
	return cfg, nil
}

func durationEnv(getenv func(string) string, name string, def time.Duration) (time.Duration, error) {
	v := getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", name)
	}
	return d, nil
}
