package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/config"
	"docqa/internal/helper"
	"docqa/internal/models"
)

// ChatTurn is an archived, completed conversation turn.
type ChatTurn struct {
	bun.BaseModel `bun:"table:chat_turns,alias:ct"`
	ID            string          `bun:"id,pk"`
	SessionID     string          `bun:"session_id,notnull"`
	Document      string          `bun:"document,notnull"`
	Seq           int             `bun:"seq,notnull"`
	Role          string          `bun:"role,notnull"`
	Content       string          `bun:"content,notnull"`
	Sources       []models.Source `bun:"sources,type:jsonb"`
	CreatedAt     time.Time       `bun:"created_at,notnull"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.ArchiveConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: archive.dsn", config.ErrMissingRequired)
	}
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*ChatTurn)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Archive appends finished turns to Postgres. It never reads them back.
type Archive struct {
	db *bun.DB
}

func NewArchive(db *bun.DB) *Archive {
	return &Archive{db: db}
}

func (a *Archive) SaveTurn(ctx context.Context, sessionID, document string, seq int, turn models.Turn) error {
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	row := &ChatTurn{
		ID:        id,
		SessionID: sessionID,
		Document:  document,
		Seq:       seq,
		Role:      string(turn.Role),
		Content:   turn.Content,
		Sources:   turn.Sources,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := a.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive turn: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
