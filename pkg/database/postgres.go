package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-adp-comments/pkg/config"
)

// Pool roles.
const (
	RolePrimary = "primary"
	RoleReplica = "replica"
)

const defaultConnectTimeout = 5 * time.Second

// NewPostgres opens a PostgreSQL pool for the given role and checks it is
// reachable within cfg.ConnectTimeout. Errors name the role and the target
// so a primary failure is not mistaken for a replica one.
func NewPostgres(ctx context.Context, role string, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres %s %s: %w", role, target(cfg), err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres %s %s: %w", role, target(cfg), err)
	}
	return db, nil
}

// DSN renders cfg as a libpq keyword/value connection string. Values are
// quoted when they are empty or contain spaces, quotes or backslashes.
func DSN(cfg config.DatabaseConfig) string {
	pairs := []struct{ key, value string }{
		{"host", cfg.Host},
		{"port", fmt.Sprint(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", cfg.Name},
		{"sslmode", cfg.SSLMode},
		{"application_name", cfg.ApplicationName},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.value == "" && p.key != "password" {
			continue
		}
		parts = append(parts, p.key+"="+quote(p.value))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func target(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("(%s:%d/%s)", cfg.Host, cfg.Port, cfg.Name)
}
