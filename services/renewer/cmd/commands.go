package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/bakomon/renewal/pkg/jobs"
	"github.com/bakomon/renewal/pkg/metrics"
	"github.com/bakomon/renewal/services/renewer/internal/browser"
	"github.com/bakomon/renewal/services/renewer/internal/sites"
	"github.com/bakomon/renewal/services/renewer/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <site>",
		Short:     "Roda o roteiro de um site agora",
		Args:      cobra.ExactArgs(1),
		ValidArgs: sites.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !sites.Known(args[0]) {
				return fmt.Errorf("%w: %s (disponíveis: %v)", sites.ErrUnknownSite, args[0], sites.Names())
			}

			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			return d.runner().Run(ctx, jobs.NewRenewJob(args[0], time.Now()))
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consome jobs.renew do NATS JetStream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			nc, err := nats.Connect(cfg.Nats.URL)
			if err != nil {
				return fmt.Errorf("erro NATS: %w", err)
			}
			defer nc.Close()
			js, err := nc.JetStream()
			if err != nil {
				return fmt.Errorf("erro JetStream: %w", err)
			}
			if err := jobs.EnsureStream(js, cfg.Nats.Stream, cfg.Nats.Subject); err != nil {
				return err
			}

			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())

			if cfg.Metrics.Port != "" {
				go func() {
					if err := metrics.StartMetricsServer(ctx, cfg.Metrics.Port, d.rdb, metrics.DefaultMetricDefs(), logger); err != nil {
						logger.Error("metrics server caiu", zap.Error(err))
					}
				}()
			}
			go browser.StartProfileSweeper(ctx, cfg.Browser.StateDir, logger)

			sub, err := worker.Subscribe(js, cfg.Nats.Subject, cfg.Nats.Durable)
			if err != nil {
				return fmt.Errorf("erro ao criar pull subscriber: %w", err)
			}

			// sem Unsubscribe no fim: apagaria o consumer durável dos outros workers
			return worker.New(sub, d.runner(), logger).Run(ctx)
		},
	}
}

func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Lista os sites com roteiro e o intervalo configurado",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configured := make(map[string]string, len(cfg.Sites))
			for _, s := range cfg.Sites {
				state := "ativo"
				if !s.IsEnabled() {
					state = "desligado"
				}
				configured[s.Name] = fmt.Sprintf("%d %s (%s)", s.Interval.Value, unitName(s.Interval.Unit), state)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SITE\tINTERVALO")
			for _, name := range sites.Names() {
				interval, ok := configured[name]
				if !ok {
					interval = "-"
				}
				fmt.Fprintf(w, "%s\t%s\n", name, interval)
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <site>",
		Short: "Mostra as últimas renovações de um site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.Close(context.Background())
			if d.repo == nil {
				return errors.New("histórico exige database.url")
			}

			rows, err := d.repo.Recent(ctx, args[0], limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INÍCIO\tOK\tDESAFIO\tDURAÇÃO\tERRO")
			for _, rn := range rows {
				fmt.Fprintf(w, "%s\t%t\t%t\t%s\t%s\n",
					rn.StartedAt.Local().Format(time.DateTime), rn.Success, rn.Challenged, rn.Duration.Round(time.Second), rn.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "quantas execuções mostrar")
	return cmd
}

func unitName(unit string) string {
	if unit == "" {
		return "day"
	}
	return unit
}
