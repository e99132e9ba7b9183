package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/entity"
	repo "github.com/joseph-ayodele/billguard/internal/repository"
	"github.com/joseph-ayodele/billguard/internal/workflow"
)

type rootOptions struct {
	store    string
	dsn      string
	provider string
	jsonOut  bool
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "billguard",
		Short:         "Audit medical bills for overcharges and draft dispute letters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.store, "store", "", "store driver: memory, sqlite, postgres or redis (default from STORE_DRIVER)")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "store DSN (default from STORE_DSN)")
	root.PersistentFlags().StringVar(&opts.provider, "provider", "", "LLM provider: gemini or openai (default from LLM_PROVIDER)")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newBatchCmd(opts),
		newHistoryCmd(opts),
		newShowCmd(opts),
		newDisputeCmd(opts),
		newDeleteCmd(opts),
		newClearCmd(opts),
		newExportCmd(opts),
		newResourcesCmd(opts),
		newHealthCmd(),
		newStoreCheckCmd(opts),
	)
	return root
}

type insuranceFlags struct {
	insurer string
	plan    string
}

func (f insuranceFlags) input() *entity.UserInsuranceInput {
	if f.insurer == "" {
		return &entity.UserInsuranceInput{}
	}
	return &entity.UserInsuranceInput{HasInsurance: true, Provider: f.insurer, PlanName: f.plan}
}

func addInsuranceFlags(cmd *cobra.Command, f *insuranceFlags) {
	cmd.Flags().StringVar(&f.insurer, "insurer", "", "insurance provider, e.g. \"Jubilee Life Insurance\"")
	cmd.Flags().StringVar(&f.plan, "plan", "", "insurance plan name")
}

// analyzeFile runs one file through a controller: select, confirm.
func analyzeFile(ctx context.Context, ctrl *workflow.Controller, path string, in *entity.UserInsuranceInput) (entity.BillRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.BillRecord{}, err
	}
	if err := ctrl.SelectFile(filepath.Base(path), data); err != nil {
		return entity.BillRecord{}, err
	}
	return ctrl.Confirm(ctx, in)
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var ins insuranceFlags
	var dispute bool
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze one bill image and save it to history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl := a.controller(ctx)
			rec, err := analyzeFile(ctx, ctrl, args[0], ins.input())
			if err != nil {
				return err
			}
			if !dispute || len(rec.Issues) == 0 {
				return printRecord(cmd.OutOrStdout(), opts.jsonOut, rec)
			}
			guide, err := ctrl.RequestDispute(ctx)
			if err != nil {
				return err
			}
			if err := printRecord(cmd.OutOrStdout(), opts.jsonOut, rec); err != nil {
				return err
			}
			return printGuide(cmd.OutOrStdout(), opts.jsonOut, guide)
		},
	}
	addInsuranceFlags(cmd, &ins)
	cmd.Flags().BoolVar(&dispute, "dispute", false, "also draft a dispute letter when issues are found")
	return cmd
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var ins insuranceFlags
	var concurrency int
	var out string
	cmd := &cobra.Command{
		Use:   "batch <file-or-dir>...",
		Short: "Analyze several bill images concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := collectBills(args, a.logger)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no bill images found")
			}

			start := time.Now()
			results := make([]batchResult, len(files))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(concurrency, 1))
			for i, path := range files {
				g.Go(func() error {
					// one controller per file: each holds a single in-flight analysis
					ctrl := workflow.NewController(a.analyzer, a.bills, a.logger, workflow.WithConfig(a.cfg.Workflow))
					rec, err := analyzeFile(gctx, ctrl, path, ins.input())
					results[i] = batchResult{Path: path, Record: rec, Err: err}
					return nil
				})
			}
			_ = g.Wait()

			failures := 0
			for _, r := range results {
				if r.Err != nil {
					failures++
					a.logger.Error("batch.file.failed", "path", r.Path, "error", r.Err)
				}
			}
			a.logger.Info("batch.done",
				"files", len(files),
				"failures", failures,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)

			if err := printBatch(cmd.OutOrStdout(), opts.jsonOut, results); err != nil {
				return err
			}
			if out != "" {
				if err := writeExport(ctx, a, out); err != nil {
					return err
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed", failures, len(files))
			}
			return nil
		},
	}
	addInsuranceFlags(cmd, &ins)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 3, "maximum analyses in flight")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also export the full history to this XLSX file")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List analyzed bills, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return printHistory(cmd.OutOrStdout(), opts.jsonOut, a.bills.GetAll(cmd.Context()))
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one analyzed bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			rec, err := a.controller(ctx).OpenRecord(args[0])
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), opts.jsonOut, rec)
		},
	}
}

func newDisputeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dispute <id>",
		Short: "Draft a dispute letter for an analyzed bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()
			ctrl := a.controller(ctx)
			if _, err := ctrl.OpenRecord(args[0]); err != nil {
				return err
			}
			guide, err := ctrl.RequestDispute(ctx)
			if err != nil {
				return err
			}
			return printGuide(cmd.OutOrStdout(), opts.jsonOut, guide)
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one bill from history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.controller(ctx).DeleteRecord(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			ctrl := a.controller(ctx)
			n := len(ctrl.History())
			if err := ctrl.ClearHistory(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleared %d bills\n", n)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

func writeExport(ctx context.Context, a *app, path string) error {
	xlsx, err := a.exporter.ExportHistoryXLSX(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, xlsx, 0o644); err != nil {
		return err
	}
	a.logger.Info("export.written", "path", path, "bytes", len(xlsx))
	return nil
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export history to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if out == "" {
				out = "billguard-history-" + time.Now().Format("2006-01-02") + ".xlsx"
			}
			if err := writeExport(cmd.Context(), a, out); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output XLSX path")
	return cmd
}

func newResourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List patient rights resources and known insurers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printResources(cmd.OutOrStdout(), opts.jsonOut, constants.Resources, constants.KnownInsurers)
		},
	}
}

func newHealthCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running billguardd over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.GetStatus().String())
			if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				return fmt.Errorf("server not serving")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "billguardd address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}

func newStoreCheckCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "store-check",
		Short: "Open the configured store, ping it and count stored bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts, false)
			if err != nil {
				return fmt.Errorf("store: FAIL (%w)", err)
			}
			defer a.Close()

			if p, ok := a.slot.(repo.Pinger); ok {
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				err := p.Ping(ctx)
				cancel()
				if err != nil {
					return fmt.Errorf("store: FAIL (%w)", err)
				}
			}
			n := len(a.bills.GetAll(cmd.Context()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "store %s: OK, %d bills under key %q\n", a.cfg.Store.Driver, n, a.cfg.Store.Key)
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "ping timeout")
	return cmd
}
