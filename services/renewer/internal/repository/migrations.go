package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	name  string
	query string
}

var migrations = []migration{
	{
		name: "001_initial_schema",
		query: `CREATE TABLE IF NOT EXISTS renewals (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			job_id VARCHAR(64) NOT NULL UNIQUE,
			site VARCHAR(64) NOT NULL,
			success BOOLEAN NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0
		);`,
	},
	{
		name:  "002_site_index",
		query: "CREATE INDEX IF NOT EXISTS idx_renewals_site_started ON renewals(site, started_at DESC);",
	},
	{
		name:  "003_add_challenged",
		query: "ALTER TABLE renewals ADD COLUMN IF NOT EXISTS challenged BOOLEAN NOT NULL DEFAULT FALSE;",
	},
}

// runMigrations aplica as migrations em ordem. Todas são idempotentes, então
// rodar de novo a cada start é seguro.
func (r *RenewalRepository) runMigrations(ctx context.Context) error {
	r.logger.Info("Verificando schema do banco de dados...")

	for _, m := range migrations {
		if _, err := r.db.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("migration [%s]: %w", m.name, err)
		}
		r.logger.Debug("Migration verificada", zap.String("name", m.name))
	}

	r.logger.Info("Migrations concluídas.")
	return nil
}
