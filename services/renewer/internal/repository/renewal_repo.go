package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Renewal é uma execução de roteiro, com ou sem sucesso.
type Renewal struct {
	JobID      string
	Site       string
	Success    bool
	Error      string
	Challenged bool
	StartedAt  time.Time
	Duration   time.Duration
}

// DB é o que o repositório usa de uma conexão pgx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type RenewalRepository struct {
	db     DB
	logger *zap.Logger
}

func NewRenewalRepository(ctx context.Context, databaseURL string, logger *zap.Logger) (*RenewalRepository, error) {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no postgres: %w", err)
	}

	repo, err := New(ctx, conn, logger)
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return repo, nil
}

// New valida a conexão e aplica as migrations.
func New(ctx context.Context, db DB, logger *zap.Logger) (*RenewalRepository, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("banco não responde: %w", err)
	}

	repo := &RenewalRepository{db: db, logger: logger}
	if err := repo.runMigrations(ctx); err != nil {
		return nil, fmt.Errorf("falha ao migrar schema: %w", err)
	}
	return repo, nil
}

// Save grava a execução e devolve o id gerado. Reenvio do mesmo job só
// atualiza a linha existente.
func (r *RenewalRepository) Save(ctx context.Context, rn Renewal) (string, error) {
	query := `
        INSERT INTO renewals
        (job_id, site, success, error, challenged, started_at, duration_ms)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (job_id) DO UPDATE
        SET success = EXCLUDED.success,
            error = EXCLUDED.error,
            challenged = EXCLUDED.challenged,
            started_at = EXCLUDED.started_at,
            duration_ms = EXCLUDED.duration_ms
        RETURNING id
    `
	var id string
	err := r.db.QueryRow(ctx, query,
		rn.JobID,
		rn.Site,
		rn.Success,
		rn.Error,
		rn.Challenged,
		rn.StartedAt,
		rn.Duration.Milliseconds(),
	).Scan(&id)
	return id, err
}

// Recent lista as últimas execuções de site, mais novas primeiro.
func (r *RenewalRepository) Recent(ctx context.Context, site string, limit int) ([]Renewal, error) {
	rows, err := r.db.Query(ctx, `
        SELECT job_id, site, success, error, challenged, started_at, duration_ms
        FROM renewals
        WHERE site = $1
        ORDER BY started_at DESC
        LIMIT $2
    `, site, limit)
	if err != nil {
		return nil, fmt.Errorf("erro consultando histórico: %w", err)
	}
	defer rows.Close()

	var out []Renewal
	for rows.Next() {
		var (
			rn Renewal
			ms int64
		)
		if err := rows.Scan(&rn.JobID, &rn.Site, &rn.Success, &rn.Error, &rn.Challenged, &rn.StartedAt, &ms); err != nil {
			return nil, err
		}
		rn.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rn)
	}
	return out, rows.Err()
}

func (r *RenewalRepository) Close(ctx context.Context) {
	if err := r.db.Close(ctx); err != nil {
		r.logger.Warn("erro fechando conexão com o banco", zap.Error(err))
	}
}
