package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RichardoC/palchat/internal/chat"
	"github.com/RichardoC/palchat/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the database in process memory; nothing survives a restart.
const MemoryDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    position INTEGER NOT NULL,
    participant_id TEXT NOT NULL,
    participant_username TEXT NOT NULL,
    participant_display_name TEXT NOT NULL,
    participant_photo_url TEXT NOT NULL,
    last_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    sender_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (conversation_id) REFERENCES conversations(id)
);

CREATE INDEX IF NOT EXISTS messages_by_conversation ON messages(conversation_id, id);`

// Database is a chat.Store on sqlite. AUTOINCREMENT message ids give the
// monotonic identifiers, and appends run in one transaction with the preview
// update.
type Database struct {
	db  *sql.DB
	now func() time.Time
}

var _ chat.Store = (*Database)(nil)

func New(dsn string) (*Database, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Database{db: db, now: time.Now}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Seed(ctx context.Context, seeds []models.Conversation) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var position int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&position); err != nil {
		return err
	}

	for _, c := range seeds {
		preview := c.LastMessage
		if last, ok := c.Last(); ok {
			preview = last.Text
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, position, participant_id, participant_username,
				participant_display_name, participant_photo_url, last_message)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, position, c.Participant.ID, c.Participant.Username,
			c.Participant.DisplayName, c.Participant.PhotoURL, preview)
		if err != nil {
			return fmt.Errorf("failed to seed conversation %s: %w", c.ID, err)
		}
		position++

		for _, m := range c.Messages {
			createdAt := m.CreatedAt
			if createdAt.IsZero() {
				createdAt = db.now()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO messages (conversation_id, sender_id, content, created_at)
				VALUES (?, ?, ?, ?)`, c.ID, m.SenderID, m.Text, createdAt); err != nil {
				return fmt.Errorf("failed to seed message in %s: %w", c.ID, err)
			}
		}
	}

	return tx.Commit()
}

func (db *Database) AppendMessage(ctx context.Context, conversationID, senderID, text string) (models.Conversation, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message = ? WHERE id = ?`, text, conversationID)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to update preview: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Conversation{}, err
	} else if n == 0 {
		return models.Conversation{}, fmt.Errorf("%w: %s", chat.ErrConversationNotFound, conversationID)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?)`, conversationID, senderID, text, db.now()); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to save message: %w", err)
	}

	conv, err := loadConversation(ctx, tx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (db *Database) Conversation(ctx context.Context, id string) (models.Conversation, error) {
	return loadConversation(ctx, db.db, id)
}

func (db *Database) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, participant_id, participant_username, participant_display_name,
			participant_photo_url, last_message
		FROM conversations
		ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	index := make(map[string]int)
	for rows.Next() {
		var c models.Conversation
		if err := scanConversation(rows, &c); err != nil {
			return nil, err
		}
		c.Messages = []models.Message{}
		index[c.ID] = len(conversations)
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := db.db.QueryContext(ctx, `
		SELECT conversation_id, id, sender_id, content, created_at
		FROM messages
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var convID string
		var id int64
		var msg models.Message
		if err := msgRows.Scan(&convID, &id, &msg.SenderID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ID = chat.MessageID(id)
		if i, ok := index[convID]; ok {
			conversations[i].Messages = append(conversations[i].Messages, msg)
		}
	}
	return conversations, msgRows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner, c *models.Conversation) error {
	return s.Scan(&c.ID, &c.Participant.ID, &c.Participant.Username,
		&c.Participant.DisplayName, &c.Participant.PhotoURL, &c.LastMessage)
}

func loadConversation(ctx context.Context, q querier, id string) (models.Conversation, error) {
	var c models.Conversation
	row := q.QueryRowContext(ctx, `
		SELECT id, participant_id, participant_username, participant_display_name,
			participant_photo_url, last_message
		FROM conversations
		WHERE id = ?`, id)
	if err := scanConversation(row, &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Conversation{}, fmt.Errorf("%w: %s", chat.ErrConversationNotFound, id)
		}
		return models.Conversation{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, sender_id, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY id`, id)
	if err != nil {
		return models.Conversation{}, err
	}
	defer rows.Close()

	c.Messages = make([]models.Message, 0)
	for rows.Next() {
		var n int64
		var msg models.Message
		if err := rows.Scan(&n, &msg.SenderID, &msg.Text, &msg.CreatedAt); err != nil {
			return models.Conversation{}, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ID = chat.MessageID(n)
		c.Messages = append(c.Messages, msg)
	}
	return c, rows.Err()
}
