package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	txTimeout    = 30 * time.Second
	txMaxRetries = 3
	txBaseDelay  = 50 * time.Millisecond
)

// inTx runs fn within a transaction, rolling back on error or panic
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// inTxWithRetry is inTx with exponential backoff on SQLite lock errors
func inTxWithRetry(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for i := 0; i < txMaxRetries; i++ {
		err = inTx(ctx, db, fn)
		if err == nil || !isLockError(err) {
			return err
		}

		select {
		case <-time.After(txBaseDelay * time.Duration(1<<uint(i))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction failed after %d retries: %w", txMaxRetries, err)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"database is locked", "database table is locked", "SQLITE_BUSY", "SQLITE_LOCKED"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
