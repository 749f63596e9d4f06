package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// assistantRepo implements AssistantRepo on SQLite.
type assistantRepo struct {
	db *sql.DB
}

func (r *assistantRepo) ForUser(ctx context.Context, userID string) (string, error) {
	sel := builder.Select("assistant_id").
		From(builder.Table(AssistantsTable.Name)).
		Where(entsql.EQ("user_id", userID))

	var id string
	err := queryRowBuilder(ctx, r.db, sel).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("load assistant: %w", err)
	}

	id = "asst_" + uuid.NewString()
	insert := builder.Insert(AssistantsTable.Name).
		Columns("user_id", "assistant_id", "created_at").
		Values(userID, id, time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.DoNothing())
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}

	// Re-read so a concurrent first request converges on one identity.
	if err := queryRowBuilder(ctx, r.db, sel).Scan(&id); err != nil {
		return "", fmt.Errorf("load assistant: %w", err)
	}
	return id, nil
}

// threadRepo implements ThreadRepo on SQLite.
type threadRepo struct {
	db *sql.DB
}

func (r *threadRepo) Create(ctx context.Context, threadID, assistantID string) error {
	insert := builder.Insert(ThreadsTable.Name).
		Columns("id", "assistant_id", "created_at").
		Values(threadID, assistantID, time.Now().UTC())
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

func (r *threadRepo) Exists(ctx context.Context, threadID string) (bool, error) {
	sel := builder.Select(entsql.Count("*")).
		From(builder.Table(ThreadsTable.Name)).
		Where(entsql.EQ("id", threadID))

	var n int
	if err := queryRowBuilder(ctx, r.db, sel).Scan(&n); err != nil {
		return false, fmt.Errorf("check thread: %w", err)
	}
	return n > 0, nil
}

func (r *threadRepo) Append(ctx context.Context, threadID string, msgs ...ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	insert := builder.Insert(ThreadMessagesTable.Name).
		Columns("thread_id", "role", "content", "created_at")
	for _, m := range msgs {
		ts := m.CreatedAt
		if ts.IsZero() {
			ts = now
		}
		insert.Values(threadID, m.Role, m.Content, ts)
	}
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return fmt.Errorf("append thread messages: %w", err)
	}
	return nil
}

func (r *threadRepo) Recent(ctx context.Context, threadID string, limit int) ([]ThreadMessage, error) {
	sel := builder.Select("id", "thread_id", "role", "content", "created_at").
		From(builder.Table(ThreadMessagesTable.Name)).
		Where(entsql.EQ("thread_id", threadID)).
		OrderBy(entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}

	rows, err := queryBuilder(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query thread messages: %w", err)
	}
	defer rows.Close()

	var out []ThreadMessage
	for rows.Next() {
		var m ThreadMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan thread message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want chronological order.
	slices.Reverse(out)
	return out, nil
}
