package postgres

import (
	"context"

	"github.com/cce-project/relay/store"
)

func (d *DB) EnsureTranscriptTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_entry (
			id              BIGSERIAL    PRIMARY KEY,
			user_id         VARCHAR(100) NOT NULL,
			conversation_id VARCHAR(100) NOT NULL,
			role            VARCHAR(20)  NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
			content         TEXT         NOT NULL,
			created_ts      BIGINT       NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_entry_conversation ON transcript_entry(conversation_id, created_ts, id)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_entry_user ON transcript_entry(user_id)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) CreateTranscriptEntry(ctx context.Context, create *store.TranscriptEntry) (*store.TranscriptEntry, error) {
	stmt := `INSERT INTO transcript_entry (user_id, conversation_id, role, content)
	         VALUES (` + placeholder(1) + `, ` + placeholder(2) + `, ` + placeholder(3) + `, ` + placeholder(4) + `)
	         RETURNING id, created_ts`
	e := &store.TranscriptEntry{
		UserID:         create.UserID,
		ConversationID: create.ConversationID,
		Role:           create.Role,
		Content:        create.Content,
	}
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UserID, create.ConversationID, create.Role, create.Content,
	).Scan(&e.ID, &e.CreatedTs); err != nil {
		return nil, err
	}
	return e, nil
}

func (d *DB) ListTranscriptEntries(ctx context.Context, find *store.FindTranscriptEntry) ([]*store.TranscriptEntry, error) {
	query := `SELECT id, user_id, conversation_id, role, content, created_ts
	          FROM transcript_entry WHERE conversation_id = $1 ORDER BY created_ts ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, find.ConversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.TranscriptEntry{}
	for rows.Next() {
		e := &store.TranscriptEntry{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.ConversationID, &e.Role, &e.Content, &e.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (d *DB) ListConversationSummaries(ctx context.Context, find *store.FindConversationSummary) ([]*store.ConversationSummary, error) {
	query := `SELECT conversation_id, user_id, MIN(created_ts) AS started_ts, COUNT(*) AS message_count
	          FROM transcript_entry
	          GROUP BY conversation_id, user_id
	          ORDER BY started_ts DESC, conversation_id ASC, user_id ASC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, find.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*store.ConversationSummary{}
	for rows.Next() {
		c := &store.ConversationSummary{}
		if err := rows.Scan(&c.ConversationID, &c.UserID, &c.StartedTs, &c.MessageCount); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
