package backend

import (
	"context"
	"fmt"

	"finmgr/internal/log"
	"finmgr/internal/session"
	"finmgr/internal/sheets"
	gsheet "finmgr/internal/sheets/google"
	"finmgr/internal/sheets/memory"
	"finmgr/internal/storage"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured session store.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteSessionStore(config.SQLiteDBPath, config.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite session store: %w", err)
		}
		f.logger.Info("Initialized SQLite session store", "db_path", config.SQLiteDBPath)
		return &BackendResult{Store: store, Cleaner: store, Cleanup: store.Close}, nil

	case RedisBackend:
		store, err := session.NewRedisStoreFromURL(ctx, config.RedisURL, config.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis session store: %w", err)
		}
		f.logger.Info("Initialized Redis session store")
		return &BackendResult{Store: store, Cleanup: store.Close}, nil

	case MemoryBackend:
		store := session.NewMemoryStore(config.SessionTTL)
		f.logger.Info("Initialized memory session store", "ttl", config.SessionTTL)
		return &BackendResult{Store: store, Cleaner: store, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateLedger opens the configured invoice ledger.
func (f *DefaultFactory) CreateLedger(ctx context.Context, config LedgerConfig) (sheets.Ledger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if config.Type == MemoryLedger {
		f.logger.Info("Initialized memory ledger")
		return memory.New(), nil
	}

	cli, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		OAuthClientJSON:    config.GoogleOAuthClientJSON,
		OAuthClientFile:    config.GoogleOAuthClientFile,
		OAuthTokenJSON:     config.GoogleOAuthTokenJSON,
		OAuthTokenFile:     config.GoogleOAuthTokenFile,
		Logger:             f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
	}
	f.logger.Info("Initialized Google Sheets ledger", "spreadsheet_id", config.GoogleSpreadsheetID)
	return cli, nil
}
