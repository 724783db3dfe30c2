package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bakomon/renewal/pkg/config"
	"github.com/bakomon/renewal/pkg/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "renewer",
	Short:         "Renova contas de hospedagem gratuita resolvendo o Turnstile no caminho.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env é opcional: em produção os segredos vêm do ambiente
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("erro lendo %s: %w", envFile, err)
		}

		path := cfgFile
		if path == "" {
			path = config.FindPath()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = observability.NewLogger("renewer", cfg.Log)
		logger.Debug("config carregada", zap.String("path", path), zap.String("env", cfg.App.Env))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			observability.Sync(logger)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "arquivo de config (padrão: CONFIG_PATH ou config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "arquivo .env com os segredos")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newSitesCmd())
	rootCmd.AddCommand(newHistoryCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil && ctx.Err() == nil {
			logger.Error("Falha na execução", zap.Error(err))
			observability.Sync(logger)
		} else {
			fmt.Fprintln(os.Stderr, "Erro:", err)
		}
		os.Exit(1)
	}
}
