package kbstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/WessleyAI/minesafe/engine/domain"
)

type kbRow struct {
	bun.BaseModel `bun:"table:knowledge_bases,alias:kb"`

	ID             string    `bun:"id,pk"`
	Name           string    `bun:"name,notnull"`
	Color          string    `bun:"color,notnull,default:'#6b7280'"`
	Description    string    `bun:"description,notnull,default:''"`
	Content        string    `bun:"content,notnull,default:''"`
	PromptTemplate string    `bun:"prompt_template,notnull,default:''"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func (r kbRow) toDomain() domain.KnowledgeBase {
	return domain.KnowledgeBase{
		ID:             r.ID,
		Name:           r.Name,
		Color:          r.Color,
		Description:    r.Description,
		Content:        r.Content,
		PromptTemplate: r.PromptTemplate,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromDomain(kb domain.KnowledgeBase) kbRow {
	return kbRow{
		ID:             kb.ID,
		Name:           kb.Name,
		Color:          kb.Color,
		Description:    kb.Description,
		Content:        kb.Content,
		PromptTemplate: kb.PromptTemplate,
		UpdatedAt:      kb.UpdatedAt,
	}
}

// Open connects to Postgres at dsn. When debug is set every query is logged.
func Open(dsn string, debug bool) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// PGStore is a Store backed by the knowledge_bases table.
type PGStore struct {
	db *bun.DB
}

// NewPGStore creates a PGStore on db.
func NewPGStore(db *bun.DB) *PGStore {
	return &PGStore{db: db}
}

// Init creates the table if needed and inserts seed rows that do not exist yet.
func (s *PGStore) Init(ctx context.Context, seed []domain.KnowledgeBase) error {
	if _, err := s.db.NewCreateTable().Model((*kbRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("kbstore: create table: %w", err)
	}
	if len(seed) == 0 {
		return nil
	}
	rows := make([]kbRow, len(seed))
	for i, kb := range seed {
		rows[i] = fromDomain(kb)
		if rows[i].UpdatedAt.IsZero() {
			rows[i].UpdatedAt = time.Now().UTC()
		}
	}
	if _, err := s.db.NewInsert().Model(&rows).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("kbstore: seed: %w", err)
	}
	return nil
}

// List implements Store.
func (s *PGStore) List(ctx context.Context) ([]domain.KnowledgeBase, error) {
	var rows []kbRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("kbstore: list: %w", err)
	}
	out := make([]domain.KnowledgeBase, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// Get implements Store.
func (s *PGStore) Get(ctx context.Context, id string) (domain.KnowledgeBase, error) {
	var row kbRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.KnowledgeBase{}, fmt.Errorf("kbstore: get %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.KnowledgeBase{}, fmt.Errorf("kbstore: get %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// SavePromptTemplate implements Store. The row is locked for the duration of
// the transaction and updated_at is set by the database.
func (s *PGStore) SavePromptTemplate(ctx context.Context, id, template string) (domain.KnowledgeBase, error) {
	var row kbRow
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(&row).Where("id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.NewUpdate().
			Model(&row).
			Set("prompt_template = ?", template).
			Set("updated_at = now()").
			WherePK().
			Returning("*").
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.KnowledgeBase{}, fmt.Errorf("kbstore: save prompt %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// Ping checks connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
