package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/meeter/meeter/internal/auth"
	"github.com/meeter/meeter/internal/repository"
	"github.com/meeter/meeter/internal/service"
	"github.com/meeter/meeter/internal/store"
)

type output struct {
	Backend    string   `json:"backend"`
	Documents  []string `json:"documents"`
	Avatar     string   `json:"avatar,omitempty"`
	APIKey     string   `json:"api_key,omitempty"`
	Balance    *float64 `json:"balance,omitempty"`
	MasterHash string   `json:"master_key_hash,omitempty"`
}

func main() {
	var (
		backend     = pflag.String("backend", envOr("STORE_BACKEND", store.BackendFile), "Store backend: file, redis or postgres")
		dataDir     = pflag.String("data-dir", envOr("DATA_DIR", "./database"), "Directory for the file backend")
		redisURL    = pflag.String("redis-url", os.Getenv("REDIS_URL"), "Redis connection string")
		redisPrefix = pflag.String("redis-prefix", envOr("REDIS_DOC_PREFIX", "meeter:doc:"), "Key prefix for the redis backend")
		databaseURL = pflag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		table       = pflag.String("table", envOr("POSTGRES_TABLE", "documents"), "Documents table for the postgres backend")
		avatar      = pflag.String("avatar", "", "Register a seed account for this avatar")
		name        = pflag.String("name", "", "Display name of the seed account")
		bonus       = pflag.Float64("bonus", 100, "Starting balance of the seed account")
		hashKey     = pflag.String("hash-master-key", "", "Print an Argon2id hash for MASTER_API_KEY_HASH")
		format      = pflag.StringP("format", "f", "plain", "Output format: plain or json")
	)
	pflag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := store.New(ctx, store.Options{
		Backend:       *backend,
		DataDir:       *dataDir,
		RedisURL:      *redisURL,
		RedisPrefix:   *redisPrefix,
		DatabaseURL:   *databaseURL,
		PostgresTable: *table,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Bootstrap(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap store:", err)
		os.Exit(1)
	}

	out := output{Backend: *backend}
	for _, doc := range store.AllDocuments {
		out.Documents = append(out.Documents, string(doc))
	}

	if *avatar != "" {
		ledger := service.NewLedger(repository.New(st, nil), service.Options{RegistrationBonus: *bonus})
		user, err := ledger.Register(ctx, *avatar, *name)
		if err != nil {
			fmt.Fprintln(os.Stderr, "register seed account:", err)
			os.Exit(1)
		}
		out.Avatar = user.Avatar
		out.APIKey = user.APIKey
		out.Balance = &user.Balance
	}

	if *hashKey != "" {
		hash, err := auth.HashKey(*hashKey)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hash master key:", err)
			os.Exit(1)
		}
		out.MasterHash = hash
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("bootstrapped %s: %s\n", out.Backend, strings.Join(out.Documents, ", "))
		if out.APIKey != "" {
			fmt.Println(out.APIKey)
		}
		if out.MasterHash != "" {
			fmt.Println(out.MasterHash)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
