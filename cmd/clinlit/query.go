package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/clinlit/internal/batch"
	"github.com/henrybloomingdale/clinlit/internal/config"
	"github.com/henrybloomingdale/clinlit/internal/output"
	"github.com/henrybloomingdale/clinlit/internal/pipeline"
)

var (
	flagStrategy   string
	flagNoAI       bool
	flagMaxResults int
)

func init() {
	queryCmd.Flags().StringVar(&flagStrategy, "strategy", "", "Use this Boolean search strategy instead of asking the LLM")
	queryCmd.Flags().BoolVar(&flagNoAI, "no-ai", false, "Search with the cleaned question text, skipping LLM strategy generation")
	queryCmd.Flags().IntVar(&flagMaxResults, "max-results", 0, "Maximum PubMed results to retrieve")
}

// queryCmd runs the full pipeline once from the terminal.
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a clinical question with a ranked bibliography",
	Long: `Run the full pipeline for one question: search strategy, PubMed
retrieval, filtering, enrichment, scoring, and per-article analysis.

The analysis phase paces LLM calls to respect rate limits; expect a run
to take a few minutes when articles are analyzed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if flagMaxResults > 0 {
			cfg.PubMedMaxResults = flagMaxResults
		}
		log := newLogger(cfg)

		sink := batch.NopSink
		if !flagJSON {
			sink = batch.SinkFunc(func(p batch.Progress) {
				if p.Processing {
					fmt.Fprintf(os.Stderr, "\ranalyzing %d/%d...", p.Current, p.Total)
				} else {
					fmt.Fprintln(os.Stderr)
				}
			})
		}
		orch := newOrchestrator(cfg, log, sink)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		req := pipeline.QueryRequest{Question: strings.Join(args, " "), Strategy: flagStrategy}
		if flagNoAI {
			useAI := false
			req.UseAI = &useAI
		}

		resp, err := orch.ProcessQuery(ctx, req)
		if err != nil {
			return err
		}
		return output.FormatResponse(os.Stdout, resp, outputCfg())
	},
}
