package mysql

import (
	"context"

	"github.com/cce-project/relay/store"
)

func (d *DB) EnsureTranscriptTables(ctx context.Context) error {
	// MySQL has no CREATE INDEX IF NOT EXISTS, so the keys live in the table definition.
	stmt := "CREATE TABLE IF NOT EXISTS `transcript_entry` (" +
		"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`user_id` VARCHAR(100) NOT NULL," +
		"`conversation_id` VARCHAR(100) NOT NULL," +
		"`role` VARCHAR(20) NOT NULL," +
		"`content` LONGTEXT NOT NULL," +
		"`created_ts` TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP," +
		"KEY `idx_transcript_entry_conversation` (`conversation_id`, `created_ts`, `id`)," +
		"KEY `idx_transcript_entry_user` (`user_id`)" +
		")"
	_, err := d.db.ExecContext(ctx, stmt)
	return err
}

func (d *DB) CreateTranscriptEntry(ctx context.Context, create *store.TranscriptEntry) (*store.TranscriptEntry, error) {
	stmt := "INSERT INTO `transcript_entry` (`user_id`, `conversation_id`, `role`, `content`) VALUES (?, ?, ?, ?)"
	result, err := d.db.ExecContext(ctx, stmt, create.UserID, create.ConversationID, create.Role, create.Content)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	e := &store.TranscriptEntry{
		ID:             rawID,
		UserID:         create.UserID,
		ConversationID: create.ConversationID,
		Role:           create.Role,
		Content:        create.Content,
	}
	if err := d.db.QueryRowContext(ctx, "SELECT UNIX_TIMESTAMP(`created_ts`) FROM `transcript_entry` WHERE `id` = ?", e.ID).
		Scan(&e.CreatedTs); err != nil {
		return nil, err
	}
	return e, nil
}

func (d *DB) ListTranscriptEntries(ctx context.Context, find *store.FindTranscriptEntry) ([]*store.TranscriptEntry, error) {
	query := "SELECT `id`, `user_id`, `conversation_id`, `role`, `content`, UNIX_TIMESTAMP(`created_ts`) " +
		"FROM `transcript_entry` WHERE `conversation_id` = ? ORDER BY `created_ts` ASC, `id` ASC"
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
	query := "SELECT `conversation_id`, `user_id`, UNIX_TIMESTAMP(MIN(`created_ts`)) AS `started_ts`, COUNT(*) AS `message_count` " +
		"FROM `transcript_entry` " +
		"GROUP BY `conversation_id`, `user_id` " +
		"ORDER BY `started_ts` DESC, `conversation_id` ASC, `user_id` ASC " +
		"LIMIT ?"
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
