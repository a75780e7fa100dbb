// Package dbtest opens in-memory SQLite databases carrying the application
// tables, for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/angelmondragon/remitflow-backend/pkg/db/models"
	"github.com/angelmondragon/remitflow-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  phone TEXT,
  user_type TEXT NOT NULL,
  is_superuser INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS transfers (
  id TEXT PRIMARY KEY,
  reference_id TEXT NOT NULL UNIQUE,
  agent_id TEXT NOT NULL,
  beneficiary_name TEXT NOT NULL,
  beneficiary_phone TEXT NOT NULL CHECK (beneficiary_phone LIKE '+%'),
  withdrawal_method TEXT NOT NULL,
  amount NUMERIC NOT NULL CHECK (amount > 0),
  sent_currency TEXT NOT NULL,
  received_currency TEXT NOT NULL,
  comment TEXT,
  status TEXT NOT NULL,
  validated_by_id TEXT,
  validated_at DATETIME,
  validation_comment TEXT,
  executed_by_id TEXT,
  executed_at DATETIME,
  execution_comment TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS commission_configs (
  id TEXT PRIMARY KEY,
  manager_id TEXT NOT NULL,
  currency TEXT NOT NULL,
  min_amount NUMERIC NOT NULL,
  max_amount NUMERIC NOT NULL,
  commission_amount NUMERIC NOT NULL,
  agent_share NUMERIC NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  previous_id TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (agent_share >= 0 AND agent_share <= 100),
  CHECK (min_amount <= max_amount)
);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_commission_configs_active
  ON commission_configs (manager_id, currency, min_amount, max_amount) WHERE active = 1;`,
	`CREATE TABLE IF NOT EXISTS commission_distributions (
  id TEXT PRIMARY KEY,
  transfer_id TEXT NOT NULL UNIQUE,
  agent_id TEXT NOT NULL,
  config_id TEXT,
  total_commission NUMERIC NOT NULL,
  declaring_agent_amount NUMERIC NOT NULL,
  manager_amount NUMERIC NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS stocks (
  id TEXT PRIMARY KEY,
  currency TEXT NOT NULL,
  location TEXT NOT NULL,
  amount NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (currency, location)
);`,
	`CREATE TABLE IF NOT EXISTS exchange_rates (
  id TEXT PRIMARY KEY,
  from_currency TEXT NOT NULL,
  to_currency TEXT NOT NULL,
  rate NUMERIC NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_by_id TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
  id TEXT PRIMARY KEY,
  stock_id TEXT NOT NULL,
  movement_type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  destination_stock_id TEXT,
  exchange_rate NUMERIC,
  converted_amount NUMERIC,
  description TEXT,
  created_by_id TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS audit_events (
  id TEXT PRIMARY KEY,
  action TEXT NOT NULL,
  entity_type TEXT NOT NULL,
  entity_id TEXT,
  actor_id TEXT,
  details TEXT,
  ip_address TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL
);`,
}

// Open returns a private in-memory database with every application table.
// The pool is pinned to one connection so transactions and plain reads see
// the same database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// SeedUser inserts an active user of the given type with an unusable password hash.
func SeedUser(t *testing.T, conn *gorm.DB, username string, userType enums.UserType) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "!",
		UserType:     userType,
		IsActive:     true,
	}
	require.NoError(t, conn.Select("*").Create(&user).Error)
	return user
}
