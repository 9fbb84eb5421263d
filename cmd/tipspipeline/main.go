package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"TipsPipeline/internal/app"
	"TipsPipeline/internal/config"
	"TipsPipeline/internal/domain"
	"TipsPipeline/internal/httpapi"
	"TipsPipeline/internal/logging"
	"TipsPipeline/internal/usecase"
)

var jsonOutput bool

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "tipspipeline",
		Short:         "Turn published tips into documents, design drafts and web pages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	root.AddCommand(
		newRunCmd(cfg, logger),
		newEstimateCmd(cfg, logger),
		newValidateCmd(cfg, logger),
		newQuickCmd(cfg, logger),
		newRunsCmd(cfg, logger),
		newImportCmd(cfg, logger),
		newServeCmd(cfg, logger),
	)
	return root
}

func newRunCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a pipeline run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pcfg, err := flags.pipelineConfig()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(ctx context.Context, a *app.Application) error {
				unsubscribe := a.Pipeline().Subscribe(progressLogger(logger))
				defer unsubscribe()

				result, err := a.Pipeline().ExecutePipeline(ctx, pcfg)
				if err != nil {
					return err
				}
				printResult(result)
				return nil
			})
		},
	}
	flags.register(cmd.Flags(), cfg.Pipeline)
	return cmd
}

func newEstimateCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Project time, cost and outputs without running anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pcfg, err := flags.pipelineConfig()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(ctx context.Context, a *app.Application) error {
				est, err := a.Pipeline().EstimatePipeline(ctx, pcfg)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(est)
					return nil
				}
				fmt.Printf("Tips:            %d\n", est.RecordCount)
				fmt.Printf("Estimated time:  %s\n", est.EstimatedTime)
				fmt.Printf("Estimated cost:  $%.4f\n", est.EstimatedCost)
				for _, kind := range domain.OrderedKinds {
					fmt.Printf("  %-14s %d\n", kind, est.EstimatedOutputs[kind])
				}
				return nil
			})
		},
	}
	flags.register(cmd.Flags(), cfg.Pipeline)
	return cmd
}

func newValidateCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline config and list every problem",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pcfg, err := flags.pipelineConfig()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(_ context.Context, a *app.Application) error {
				v := a.Pipeline().ValidateConfig(pcfg)
				if jsonOutput {
					printJSON(v)
				} else if v.Valid {
					fmt.Println("Config is valid")
				} else {
					for _, problem := range v.Errors {
						fmt.Println("- " + problem)
					}
				}
				if !v.Valid {
					return &domain.ConfigValidationError{Problems: v.Errors}
				}
				return nil
			})
		},
	}
	flags.register(cmd.Flags(), cfg.Pipeline)
	return cmd
}

func newQuickCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:       "quick <preset>",
		Short:     "Run a preset (documents, design-exports, webpages, everything)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: presetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := usecase.ParsePreset(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(ctx context.Context, a *app.Application) error {
				unsubscribe := a.Pipeline().Subscribe(progressLogger(logger))
				defer unsubscribe()

				result, err := a.Pipeline().QuickGenerate(ctx, preset, count)
				if err != nil {
					return err
				}
				printResult(result)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of tips")
	return cmd
}

func newRunsCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), cfg, logger, func(ctx context.Context, a *app.Application) error {
				runs, err := a.Runs().RecentRuns(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					printJSON(runs)
					return nil
				}
				for _, r := range runs {
					fmt.Printf("%s  %-8s  %d/%d ok  %s\n",
						r.StartedAt.Format(time.RFC3339), r.Status, r.Succeeded, r.TotalTips, r.RunID)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newImportCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "import <tips.json>",
		Short: "Upsert tips from a JSON array into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read tips: %w", err)
			}
			tips, err := decodeTips(raw)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), cfg, logger, func(ctx context.Context, a *app.Application) error {
				for _, tip := range tips {
					if err := a.Tips().SaveTip(ctx, tip); err != nil {
						return err
					}
				}
				logger.Info("tips imported", "count", len(tips))
				return nil
			})
		},
	}
}

func newServeCmd(cfg config.Config, logger *slog.Logger) *cobra.Command {
	addr := cfg.HTTP.Addr
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), cfg, logger, func(ctx context.Context, a *app.Application) error {
				if err := a.StartScheduler(ctx); err != nil {
					return err
				}

				handler := httpapi.NewHandler(a.Pipeline(), a.Runs(), logger.With("component", "http"))
				server := httpapi.NewServer(addr, handler.Router())

				errCh := make(chan error, 1)
				go func() {
					logger.Info("http server listening", "addr", addr)
					errCh <- server.ListenAndServe()
				}()

				select {
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				logger.Info("http server shutting down")
				return server.Shutdown(shutdownCtx)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", cfg.HTTP.Addr, "listen address")
	return cmd
}

// withApp builds the application for one command and tears it down afterwards.
func withApp(parent context.Context, cfg config.Config, logger *slog.Logger, fn func(context.Context, *app.Application) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Close(closeCtx); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	return fn(ctx, application)
}

func decodeTips(raw []byte) ([]domain.Tip, error) {
	var tips []domain.Tip
	if err := json.Unmarshal(raw, &tips); err != nil {
		return nil, fmt.Errorf("decode tips: %w", err)
	}
	for i, tip := range tips {
		if tip.ID == "" || tip.Title == "" {
			return nil, fmt.Errorf("tip %d: id and title are required", i)
		}
		if !tip.Category.Valid() {
			return nil, fmt.Errorf("tip %s: unknown category %q", tip.ID, tip.Category)
		}
		if tip.Status == "" {
			tips[i].Status = domain.StatusPublished
		}
	}
	return tips, nil
}

// progressLogger reports stage changes and every tenth percent of a run.
func progressLogger(logger *slog.Logger) func(domain.ProgressEvent) {
	var (
		lastStage domain.Stage
		lastPct   = -1
	)
	return func(ev domain.ProgressEvent) {
		pct := int(ev.Percentage) / 10 * 10
		if ev.Stage == lastStage && pct == lastPct {
			return
		}
		lastStage, lastPct = ev.Stage, pct
		logger.Info("progress",
			"stage", ev.Stage,
			"current", ev.Current,
			"total", ev.Total,
			"tip", ev.CurrentItem,
			"eta", ev.EstimatedRemaining,
		)
	}
}

func printResult(result domain.PipelineResult) {
	if jsonOutput {
		printJSON(result)
		return
	}
	fmt.Printf("Run %s: %s\n", result.RunID, result.Status)
	fmt.Printf("  tips %d, succeeded %d, failed %d, enhanced %d\n",
		result.Summary.TotalTips, result.Summary.SuccessCount, result.Summary.FailedCount, result.Summary.EnhancedTips)
	for _, kind := range domain.OrderedKinds {
		if refs, ok := result.Outputs[kind]; ok {
			fmt.Printf("  %-14s %d\n", kind, len(refs))
		}
	}
	if len(result.Errors) > 0 {
		fmt.Printf("  errors: %d\n", len(result.Errors))
	}
	if result.ReportPath != "" {
		fmt.Printf("  report: %s\n", result.ReportPath)
	}
	fmt.Printf("  took %s\n", result.Timing.Total.Round(time.Millisecond))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func presetNames() []string {
	names := make([]string, 0, len(usecase.Presets))
	for _, p := range usecase.Presets {
		names = append(names, string(p))
	}
	return names
}
