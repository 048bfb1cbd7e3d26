// Command clinlit answers clinical questions with ranked, analyzed
// PubMed bibliographies.
package main

import (
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/clinlit/internal/batch"
	"github.com/henrybloomingdale/clinlit/internal/config"
	"github.com/henrybloomingdale/clinlit/internal/eutils"
	"github.com/henrybloomingdale/clinlit/internal/icite"
	"github.com/henrybloomingdale/clinlit/internal/llm"
	"github.com/henrybloomingdale/clinlit/internal/ncbi"
	"github.com/henrybloomingdale/clinlit/internal/output"
	"github.com/henrybloomingdale/clinlit/internal/pipeline"
)

var (
	flagJSON  bool
	flagHuman bool
	flagFull  bool
	flagRIS   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clinlit",
	Short: "Clinical literature query pipeline",
	Long: `clinlit turns a free-text clinical question into a ranked, analyzed
PubMed bibliography: an LLM-drafted Boolean search strategy, title
distillation, abstract and iCite enrichment, deterministic scoring, and
per-article critical analysis.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as structured JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagHuman, "human", "H", false, "Rich colorful terminal output")
	rootCmd.PersistentFlags().BoolVar(&flagFull, "full", false, "Show analyses and score rationale (with --human)")
	rootCmd.PersistentFlags().StringVar(&flagRIS, "ris", "", "Export the bibliography to a RIS file")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(meshCmd)
}

func outputCfg() output.Config {
	return output.Config{
		JSON:    flagJSON,
		Human:   flagHuman,
		Full:    flagFull,
		RISFile: flagRIS,
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.LogrusLevel())
	return log
}

func newBaseClient(cfg config.Config) *ncbi.BaseClient {
	opts := []ncbi.Option{ncbi.WithBaseURL(cfg.PubMedBaseURL)}
	if cfg.PubMedAPIKey != "" {
		opts = append(opts, ncbi.WithAPIKey(cfg.PubMedAPIKey))
	}
	return ncbi.NewBaseClient(opts...)
}

func newOrchestrator(cfg config.Config, log logrus.FieldLogger, sink batch.Sink) *pipeline.Orchestrator {
	llmClient := llm.NewClient(
		llm.WithBaseURL(cfg.LLMBaseURL),
		llm.WithAPIKey(cfg.LLMAPIKey),
		llm.WithModel(cfg.LLMModel),
		llm.WithShortTimeout(cfg.HTTPTimeoutShort),
		llm.WithLongTimeout(cfg.HTTPTimeoutLong),
	)
	pubmed := eutils.NewClientWithBase(newBaseClient(cfg))

	iciteOpts := []icite.Option{icite.WithBaseURL(cfg.ICiteBaseURL)}
	if cfg.HTTPTimeoutShort > 0 {
		iciteOpts = append(iciteOpts, icite.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeoutShort}))
	}
	bib := icite.NewClient(iciteOpts...)

	return pipeline.New(llmClient, pubmed, bib, pipeline.Config{
		MaxResults: cfg.PubMedMaxResults,
		LongModel:  cfg.LLMLongModel,
		Batch:      cfg.BatchConfig(),
		Log:        log,
		Sink:       sink,
	})
}
