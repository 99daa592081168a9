package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskflow/aggregate"
	"taskflow/api"
	"taskflow/notion"
	"taskflow/schema"
)

var (
	cfg    config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taskflow",
	Short: "Task, journal and event tracker backed by Notion",
	Long: `taskflow serves the dashboard API: it merges the task databases into one
set, answers statistics and category queries over it, and proxies reads and
writes to the workspace with the integration token kept on the server.

Run without a subcommand to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(os.Getenv)
		if err != nil {
			return err
		}
		logger = newLogger(cfg)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, statsCmd, tasksCmd, initStorageCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config) *log.Logger {
	l := log.New()
	if cfg.Debug {
		l.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		l.SetFormatter(&log.JSONFormatter{})
	}
	return l
}

// newRedisClient accepts a redis:// URL or the "host:port,password=...,ssl=True"
// form of Azure connection strings. An empty string disables Redis.
func newRedisClient(conn string) *redis.Client {
	if conn == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(conn)
	if err != nil {
		parts := strings.Split(conn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	return redis.NewClient(redisOpts)
}

func newAuth(cfg config) (*api.Auth, error) {
	if cfg.JWTSecret != "" {
		return api.NewAuth(nil, []byte(cfg.JWTSecret), cfg.Audience, cfg.Issuer, cfg.JWKSCacheTTL), nil
	}
	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshInterval: time.Hour,
		RefreshErrorHandler: func(err error) {
			logger.WithError(err).Warn("jwks refresh failed")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, nil, cfg.Audience, cfg.Issuer, cfg.JWKSCacheTTL), nil
}

// core is the store client and the aggregator over it.
type core struct {
	store  *notion.Client
	schema *schema.Schema
	agg    *aggregate.Aggregator
}

func newCore(cfg config, logger *log.Logger) (*core, error) {
	sch := schema.Default()
	if cfg.SchemaPath != "" {
		var err error
		if sch, err = schema.Load(cfg.SchemaPath); err != nil {
			return nil, err
		}
	}
	store, err := notion.New(notion.Config{
		BaseURL:   cfg.NotionBaseURL,
		Token:     cfg.NotionToken,
		Databases: cfg.Databases,
	}, logger)
	if err != nil {
		return nil, err
	}
	agg := aggregate.New(store, sch, aggregate.Options{
		Location:     cfg.Location,
		FetchTimeout: cfg.FetchTimeout,
	}, logger)
	return &core{store: store, schema: sch, agg: agg}, nil
}
