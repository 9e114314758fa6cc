package backend

import (
	"errors"
	"fmt"
	"time"

	"finmgr/internal/config"
)

// Config selects and configures the session store.
type Config struct {
	Type       BackendType
	SessionTTL time.Duration

	SQLiteDBPath string
	RedisURL     string
}

// LedgerConfig selects and configures the invoice ledger.
type LedgerConfig struct {
	Type LedgerType

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenJSON     string
	GoogleOAuthTokenFile     string
}

// FromAppConfig extracts the session store settings.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}
	bt := BackendType(appConfig.SessionBackend)
	if !bt.IsValid() {
		return Config{}, fmt.Errorf("invalid session backend in config: %s", appConfig.SessionBackend)
	}
	return Config{
		Type:         bt,
		SessionTTL:   appConfig.SessionTTL,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		RedisURL:     appConfig.RedisURL,
	}, nil
}

// LedgerFromAppConfig extracts the ledger settings.
func LedgerFromAppConfig(appConfig *config.Config) (LedgerConfig, error) {
	if appConfig == nil {
		return LedgerConfig{}, errors.New("app config is nil")
	}
	lt := LedgerType(appConfig.LedgerBackend)
	if !lt.IsValid() {
		return LedgerConfig{}, fmt.Errorf("invalid ledger backend in config: %s", appConfig.LedgerBackend)
	}
	return LedgerConfig{
		Type:                     lt,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleOAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
		GoogleOAuthClientFile:    appConfig.GoogleOAuthClientFile,
		GoogleOAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
		GoogleOAuthTokenFile:     appConfig.GoogleOAuthTokenFile,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite backend")
		}
	case RedisBackend:
		if c.RedisURL == "" {
			return errors.New("Redis URL is required for redis backend")
		}
	}
	return nil
}

func (c LedgerConfig) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid ledger type: %s", c.Type)
	}
	if c.Type != SheetsLedger {
		return nil
	}
	if c.GoogleSpreadsheetID == "" {
		return errors.New("Google Spreadsheet ID is required for sheets ledger")
	}
	hasSA := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
	hasClient := c.GoogleOAuthClientJSON != "" || c.GoogleOAuthClientFile != ""
	hasToken := c.GoogleOAuthTokenJSON != "" || c.GoogleOAuthTokenFile != ""
	if !hasSA && !(hasClient && hasToken) {
		return errors.New("sheets ledger needs a service account or an OAuth client and token")
	}
	return nil
}

// GetBackendTypeStrings lists the accepted SESSION_BACKEND values.
func GetBackendTypeStrings() []string {
	return []string{MemoryBackend.String(), SQLiteBackend.String(), RedisBackend.String()}
}
