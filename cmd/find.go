package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/crawler"
	"github.com/sells-group/outreach-cli/internal/discovery"
	"github.com/sells-group/outreach-cli/internal/fetcher"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/pipeline"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/scorer"
	"github.com/sells-group/outreach-cli/pkg/apollo"
	"github.com/sells-group/outreach-cli/pkg/brave"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Discover recruiting contacts for companies in a CSV",
	Long: `Reads a CSV with company names (and optional domains), resolves
each company's website, finds recruiting contacts, and writes a result
row per company. Duplicate and failed rows never stop the batch.`,
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringP("input", "i", "", "input CSV with a company name column (required)")
	findCmd.Flags().StringP("output", "o", "", "output CSV path (default stdout)")
	findCmd.Flags().Int("concurrency", 0, "companies processed in parallel (default from config)")
	findCmd.Flags().Bool("skip-processed", false, "skip companies that already have a stored result")
	_ = findCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	inPath, _ := cmd.Flags().GetString("input")
	outPath, _ := cmd.Flags().GetString("output")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = cfg.Pipeline.Concurrency
	}

	orgs, err := readInput(inPath)
	if err != nil {
		return err
	}
	if len(orgs) == 0 {
		return eris.New("input csv has no usable rows")
	}
	zap.L().Info("starting discovery batch",
		zap.Int("companies", len(orgs)),
		zap.Int("concurrency", concurrency),
	)

	proc, cleanup, err := buildProcessor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	skip, _ := cmd.Flags().GetBool("skip-processed")
	proc.SkipProcessed(skip || cfg.Pipeline.SkipProcessed)

	results, sum := proc.RunBatch(ctx, orgs, concurrency)

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "creating %s", outPath)
		}
		defer f.Close()
		out = f
	}
	if err := pipeline.WriteResults(out, results); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(),
		"%d companies: %d found, %d no contact, %d no domain, %d skipped, %d errors (%s)\n",
		sum.Total, sum.Found, sum.NoContactFound, sum.NoDomainResolved,
		sum.SkippedDuplicate, sum.Errors, sum.Elapsed.Round(1e8))
	return nil
}

// readInput picks the reader by extension. Anything that is not an
// xlsx workbook is treated as CSV.
func readInput(path string) ([]model.Organization, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return pipeline.ReadOrganizationsXLSX(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return pipeline.ReadOrganizations(f)
}

// buildProcessor assembles the discovery pipeline from config. The
// returned cleanup closes the store.
func buildProcessor(ctx context.Context) (*pipeline.Processor, func(), error) {
	if cfg.Brave.APIKey == "" {
		return nil, nil, eris.New("brave api key is required (OUTREACH_BRAVE_API_KEY)")
	}
	search, err := brave.NewClient(cfg.Brave.APIKey)
	if err != nil {
		return nil, nil, err
	}

	disc := discovery.New(
		braveAdapter{search},
		resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		cfg.Retry.ToResilience(),
	)

	f := fetcher.New(fetcher.WithPerHostRate(cfg.Pipeline.PerHostRPS, 2))
	crawl := crawler.New(f, cfg.Crawler)

	var verifier pipeline.Verifier
	if cfg.Apollo.Enabled && cfg.Apollo.APIKey != "" {
		verifier, err = apollo.NewClient(cfg.Apollo.APIKey)
		if err != nil {
			return nil, nil, err
		}
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	proc := pipeline.NewProcessor(disc, crawl, scorer.New(cfg.Scorer), verifier, st)
	return proc, func() { _ = st.Close() }, nil
}

// braveAdapter maps the Brave client onto the discovery provider
// interface.
type braveAdapter struct {
	client brave.Client
}

func (b braveAdapter) Search(ctx context.Context, query string, count int) ([]discovery.SearchResult, error) {
	hits, err := b.client.WebSearch(ctx, query, count)
	if err != nil {
		return nil, err
	}
	out := make([]discovery.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = discovery.SearchResult{Title: h.Title, URL: h.URL, Snippet: h.Description}
	}
	return out, nil
}
