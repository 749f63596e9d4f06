package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// expectedAnswerRepo implements ExpectedAnswerRepo on SQLite.
type expectedAnswerRepo struct {
	db *sql.DB
}

func (r *expectedAnswerRepo) Get(ctx context.Context, threadID string) (*ExpectedAnswer, error) {
	sel := builder.Select("thread_id", "question", "answer", "hint", "difficulty", "updated_at").
		From(builder.Table(ExpectedAnswersTable.Name)).
		Where(entsql.EQ("thread_id", threadID))

	var a ExpectedAnswer
	err := queryRowBuilder(ctx, r.db, sel).Scan(&a.ThreadID, &a.Question, &a.Answer, &a.Hint, &a.Difficulty, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load expected answer: %w", err)
	}
	return &a, nil
}

func (r *expectedAnswerRepo) Put(ctx context.Context, ans ExpectedAnswer) error {
	if ans.UpdatedAt.IsZero() {
		ans.UpdatedAt = time.Now().UTC()
	}
	insert := builder.Insert(ExpectedAnswersTable.Name).
		Columns("thread_id", "question", "answer", "hint", "difficulty", "updated_at").
		Values(ans.ThreadID, ans.Question, ans.Answer, ans.Hint, ans.Difficulty, ans.UpdatedAt).
		OnConflict(
			entsql.ConflictColumns("thread_id"),
			entsql.ResolveWithNewValues(),
		)
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return fmt.Errorf("save expected answer: %w", err)
	}
	return nil
}

// graphRepo implements GraphRepo on SQLite.
type graphRepo struct {
	db *sql.DB
}

func (r *graphRepo) Load(ctx context.Context, threadID string) (json.RawMessage, error) {
	sel := builder.Select("data").
		From(builder.Table(StoryGraphsTable.Name)).
		Where(entsql.EQ("thread_id", threadID))

	var data string
	err := queryRowBuilder(ctx, r.db, sel).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load story graph: %w", err)
	}
	return json.RawMessage(data), nil
}

func (r *graphRepo) Save(ctx context.Context, threadID string, data json.RawMessage) error {
	insert := builder.Insert(StoryGraphsTable.Name).
		Columns("thread_id", "data", "updated_at").
		Values(threadID, string(data), time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("thread_id"),
			entsql.ResolveWithNewValues(),
		)
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return fmt.Errorf("save story graph: %w", err)
	}
	return nil
}
