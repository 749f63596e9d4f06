package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var (
	conversationColumns = []string{"id", "user_id", "thread_id", "has_wrong", "created_at", "last_activity"}
	turnColumns         = []string{"id", "conversation_id", "role", "content", "correct", "difficulty", "created_at"}
)

// conversationRepo implements ConversationRepo on SQLite.
type conversationRepo struct {
	db *sql.DB
}

func (r *conversationRepo) Create(ctx context.Context, userID, threadID string) (int64, error) {
	now := time.Now().UTC()
	insert := builder.Insert(ConversationsTable.Name).
		Columns("user_id", "thread_id", "has_wrong", "created_at", "last_activity").
		Values(userID, threadID, false, now, now)
	res, err := execBuilder(ctx, r.db, insert)
	if err != nil {
		return 0, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("conversation id: %w", err)
	}
	return id, nil
}

func (r *conversationRepo) Get(ctx context.Context, id int64) (*Conversation, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *conversationRepo) ByThread(ctx context.Context, threadID string) (*Conversation, error) {
	return r.one(ctx, entsql.EQ("thread_id", threadID))
}

func (r *conversationRepo) one(ctx context.Context, pred *entsql.Predicate) (*Conversation, error) {
	sel := builder.Select(conversationColumns...).
		From(builder.Table(ConversationsTable.Name)).
		Where(pred)

	c, err := scanConversation(queryRowBuilder(ctx, r.db, sel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return c, nil
}

func (r *conversationRepo) Touch(ctx context.Context, id int64) error {
	upd := builder.Update(ConversationsTable.Name).
		Set("last_activity", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	if _, err := execBuilder(ctx, r.db, upd); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

func (r *conversationRepo) MarkWrong(ctx context.Context, id int64) error {
	upd := builder.Update(ConversationsTable.Name).
		Set("has_wrong", true).
		Set("last_activity", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	if _, err := execBuilder(ctx, r.db, upd); err != nil {
		return fmt.Errorf("mark conversation wrong: %w", err)
	}
	return nil
}

func (r *conversationRepo) AppendTurn(ctx context.Context, turn Turn) (int64, error) {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	var correct any
	if turn.Correct != nil {
		correct = *turn.Correct
	}
	insert := builder.Insert(TurnsTable.Name).
		Columns(turnColumns[1:]...).
		Values(turn.ConversationID, turn.Role, turn.Content, correct, turn.Difficulty, turn.CreatedAt)
	res, err := execBuilder(ctx, r.db, insert)
	if err != nil {
		return 0, fmt.Errorf("append turn: %w", err)
	}
	return res.LastInsertId()
}

func (r *conversationRepo) GradeLatestUserTurn(ctx context.Context, conversationID int64, correct bool) error {
	sel := builder.Select("id").
		From(builder.Table(TurnsTable.Name)).
		Where(entsql.And(
			entsql.EQ("conversation_id", conversationID),
			entsql.EQ("role", RoleUser),
		)).
		OrderBy(entsql.Desc("id")).
		Limit(1)

	var turnID int64
	if err := queryRowBuilder(ctx, r.db, sel).Scan(&turnID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("grade turn: conversation %d has no user turns: %w", conversationID, ErrNotFound)
		}
		return fmt.Errorf("find latest user turn: %w", err)
	}

	upd := builder.Update(TurnsTable.Name).
		Set("correct", correct).
		Where(entsql.EQ("id", turnID))
	if _, err := execBuilder(ctx, r.db, upd); err != nil {
		return fmt.Errorf("grade turn: %w", err)
	}
	return nil
}

func (r *conversationRepo) Turns(ctx context.Context, conversationID int64) ([]Turn, error) {
	sel := builder.Select(turnColumns...).
		From(builder.Table(TurnsTable.Name)).
		Where(entsql.EQ("conversation_id", conversationID)).
		OrderBy("id")

	rows, err := queryBuilder(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var correct sql.NullBool
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &correct, &t.Difficulty, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if correct.Valid {
			v := correct.Bool
			t.Correct = &v
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string) ([]Conversation, error) {
	sel := builder.Select(conversationColumns...).
		From(builder.Table(ConversationsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("last_activity"), entsql.Desc("id"))

	rows, err := queryBuilder(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.ThreadID, &c.HasWrong, &c.CreatedAt, &c.LastActivity); err != nil {
		return nil, err
	}
	return &c, nil
}
