// Package backend builds the store and the optional outbound adapters from
// configuration.
package backend

import (
	"context"
	"fmt"

	"financify/internal/config"
	"financify/internal/middleware/auth"
	"financify/internal/reports"
	"financify/internal/services"
)

// Store is everything the commands need from a storage backend.
type Store interface {
	reports.Store
	services.StatementRepository
	services.ExpenseRepository
	services.PatternRepository
	services.UserRepository
	services.ReportRepository
	auth.UserLookup
	Ping(ctx context.Context) error
	Close() error
}

// Type represents the type of backend
type Type string

const (
	SQLite Type = "sqlite"
	Memory Type = "memory"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLite, Memory:
		return true
	default:
		return false
	}
}

// Config holds configuration for backend creation
type Config struct {
	Type         Type
	SQLiteDBPath string

	// AMQP is skipped when AMQPURL is empty.
	AMQPURL         string
	AMQPExchange    string
	AMQPQueue       string
	AMQPEventsQueue string

	// Sheets export is skipped when GoogleSpreadsheetID is empty.
	GoogleSpreadsheetID    string
	GoogleReportsSheetName string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}
	return Config{
		Type:                   t,
		SQLiteDBPath:           appConfig.SQLiteDBPath,
		AMQPURL:                appConfig.AMQPURL,
		AMQPExchange:           appConfig.AMQPExchange,
		AMQPQueue:              appConfig.AMQPQueue,
		AMQPEventsQueue:        appConfig.AMQPEventsQueue,
		GoogleSpreadsheetID:    appConfig.GoogleSpreadsheetID,
		GoogleReportsSheetName: appConfig.GoogleReportsSheetName,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLite && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if c.AMQPURL != "" && c.AMQPQueue == "" {
		return fmt.Errorf("AMQP queue is required when AMQP is enabled")
	}
	return nil
}
