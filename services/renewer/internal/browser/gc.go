package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	orphanProfileTTL = 90 * time.Minute
	sweepInterval    = 15 * time.Minute
)

// StartProfileSweeper remove periodicamente os perfis temporários que
// ficaram para trás depois de um crash do worker. Bloqueia até ctx acabar.
func StartProfileSweeper(ctx context.Context, baseDir string, logger *zap.Logger) {
	logger.Info("[GC] Iniciando Profile Sweeper...", zap.String("dir", baseDir))
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOrphanProfiles(baseDir, orphanProfileTTL, logger)
		}
	}
}

func sweepOrphanProfiles(baseDir string, ttl time.Duration, logger *zap.Logger) int {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		logger.Warn("[GC] Erro lendo diretório base", zap.String("dir", baseDir), zap.Error(err))
		return 0
	}

	removed := 0
	now := time.Now()

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), profilePrefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= ttl {
			continue
		}

		fullPath := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(fullPath); err != nil {
			logger.Warn("[GC] Erro removendo perfil órfão", zap.String("path", fullPath), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("[GC] 🧹 Sweeper removeu perfis órfãos", zap.Int("count", removed))
	}
	return removed
}
