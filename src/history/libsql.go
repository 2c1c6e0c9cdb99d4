package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/tursodatabase/go-libsql"

	tyerrors "tyrant/src/errors"
	"tyrant/src/message"
)

const backendLibSQL = "libsql"

// LibSQLStore keeps conversations in a local libSQL database file
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens (creating if needed) the database at dbPath
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &LibSQLStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Printf("[History] Opened libsql store at %s", dbPath)
	return s, nil
}

func (s *LibSQLStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			personality TEXT NOT NULL DEFAULT '',
			feedback TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			blocks TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *LibSQLStore) Create(ctx context.Context, personality string) (Conversation, error) {
	now := stamp()
	c := Conversation{
		ID:          newID(),
		Personality: personality,
		CreatedAt:   fromStamp(now),
		UpdatedAt:   fromStamp(now),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, personality, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Personality, now, now)
	if err != nil {
		return Conversation{}, tyerrors.NewStoreError("create", backendLibSQL, err)
	}
	return c, nil
}

const conversationColumns = `c.id, c.personality, c.feedback, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)`

func scanConversation(scan func(dest ...interface{}) error) (Conversation, error) {
	var c Conversation
	var created, updated int64
	if err := scan(&c.ID, &c.Personality, &c.Feedback, &created, &updated, &c.MessageCount); err != nil {
		return Conversation{}, err
	}
	c.CreatedAt = fromStamp(created)
	c.UpdatedAt = fromStamp(updated)
	return c, nil
}

func (s *LibSQLStore) Get(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations c WHERE c.id = ?`, id)

	c, err := scanConversation(row.Scan)
	if err == sql.ErrNoRows {
		return Conversation{}, notFound("get", backendLibSQL, id)
	}
	if err != nil {
		return Conversation{}, tyerrors.NewStoreError("get", backendLibSQL, err)
	}
	return c, nil
}

func (s *LibSQLStore) Append(ctx context.Context, id string, msgs ...message.Message) error {
	err := inTxWithRetry(ctx, s.db, func(tx *sql.Tx) error {
		now := stamp()
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return notFound("append", backendLibSQL, id)
		}

		for _, m := range msgs {
			blocks, err := encodeBlocks(m.Blocks)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO messages (conversation_id, role, content, blocks, created_at) VALUES (?, ?, ?, ?, ?)`,
				id, string(m.Role), m.Content, blocks, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return wrapStoreErr("append", err)
}

func (s *LibSQLStore) Messages(ctx context.Context, id string, limit int) ([]message.Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, blocks FROM (
			SELECT id, role, content, blocks FROM messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC`, id, limit)
	if err != nil {
		return nil, tyerrors.NewStoreError("messages", backendLibSQL, err)
	}
	defer rows.Close()

	var msgs []message.Message
	for rows.Next() {
		var m message.Message
		var role, blocks string
		if err := rows.Scan(&role, &m.Content, &blocks); err != nil {
			return nil, tyerrors.NewStoreError("messages", backendLibSQL, err)
		}
		m.Role = message.Role(role)
		if m.Blocks, err = decodeBlocks(blocks); err != nil {
			return nil, tyerrors.NewStoreError("messages", backendLibSQL, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, tyerrors.NewStoreError("messages", backendLibSQL, err)
	}
	return msgs, nil
}

func (s *LibSQLStore) SetFeedback(ctx context.Context, id, feedback string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET feedback = ?, updated_at = ? WHERE id = ?`, feedback, stamp(), id)
	if err != nil {
		return tyerrors.NewStoreError("feedback", backendLibSQL, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("feedback", backendLibSQL, id)
	}
	return nil
}

func (s *LibSQLStore) List(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations c ORDER BY c.updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, tyerrors.NewStoreError("list", backendLibSQL, err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, tyerrors.NewStoreError("list", backendLibSQL, err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, tyerrors.NewStoreError("list", backendLibSQL, err)
	}
	return convs, nil
}

func (s *LibSQLStore) Delete(ctx context.Context, id string) error {
	err := inTxWithRetry(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return notFound("delete", backendLibSQL, id)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id)
		return err
	})
	return wrapStoreErr("delete", err)
}

func (s *LibSQLStore) Close() error {
	return s.db.Close()
}

// wrapStoreErr leaves errors that are already *errors.StoreError alone
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*tyerrors.StoreError); ok {
		return err
	}
	return tyerrors.NewStoreError(op, backendLibSQL, err)
}
