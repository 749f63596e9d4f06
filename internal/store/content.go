package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// instructionRepo implements InstructionRepo on SQLite.
type instructionRepo struct {
	db *sql.DB
}

func (r *instructionRepo) Active(ctx context.Context) ([]Instruction, error) {
	return r.list(ctx, entsql.EQ("is_active", true))
}

func (r *instructionRepo) List(ctx context.Context) ([]Instruction, error) {
	return r.list(ctx, nil)
}

func (r *instructionRepo) list(ctx context.Context, pred *entsql.Predicate) ([]Instruction, error) {
	sel := builder.Select("id", "name", "value", "is_active", "updated_at").
		From(builder.Table(InstructionsTable.Name)).
		OrderBy("name")
	if pred != nil {
		sel.Where(pred)
	}

	rows, err := queryBuilder(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query instructions: %w", err)
	}
	defer rows.Close()

	var out []Instruction
	for rows.Next() {
		var in Instruction
		if err := rows.Scan(&in.ID, &in.Name, &in.Value, &in.Active, &in.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *instructionRepo) Upsert(ctx context.Context, name, value string, active bool) error {
	insert := builder.Insert(InstructionsTable.Name).
		Columns("name", "value", "is_active", "updated_at").
		Values(name, value, active, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWithNewValues(),
		)
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return fmt.Errorf("upsert instruction %q: %w", name, err)
	}
	return nil
}

func (r *instructionRepo) SetActive(ctx context.Context, name string, active bool) error {
	upd := builder.Update(InstructionsTable.Name).
		Set("is_active", active).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("name", name))
	res, err := execBuilder(ctx, r.db, upd)
	if err != nil {
		return fmt.Errorf("update instruction %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("instruction %q: %w", name, ErrNotFound)
	}
	return nil
}

// documentRepo implements DocumentRepo on SQLite.
type documentRepo struct {
	db *sql.DB
}

func (r *documentRepo) Active(ctx context.Context) ([]Document, error) {
	return r.list(ctx, entsql.And(
		entsql.EQ("is_indexed", true),
		entsql.EQ("is_active", true),
	))
}

func (r *documentRepo) List(ctx context.Context) ([]Document, error) {
	return r.list(ctx, nil)
}

func (r *documentRepo) list(ctx context.Context, pred *entsql.Predicate) ([]Document, error) {
	sel := builder.Select("id", "title", "summary", "is_indexed", "is_active", "created_at").
		From(builder.Table(DocumentsTable.Name)).
		OrderBy("id")
	if pred != nil {
		sel.Where(pred)
	}

	rows, err := queryBuilder(ctx, r.db, sel)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Summary, &d.Indexed, &d.Active, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *documentRepo) Upsert(ctx context.Context, doc Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	insert := builder.Insert(DocumentsTable.Name).
		Columns("title", "summary", "is_indexed", "is_active", "created_at").
		Values(doc.Title, doc.Summary, doc.Indexed, doc.Active, doc.CreatedAt).
		OnConflict(
			entsql.ConflictColumns("title"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("summary")
				u.SetExcluded("is_indexed")
				u.SetExcluded("is_active")
			}),
		)
	if _, err := execBuilder(ctx, r.db, insert); err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.Title, err)
	}
	return nil
}
