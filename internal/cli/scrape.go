package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/calltrace/internal/config"
	"github.com/roach88/calltrace/internal/intercept"
	"github.com/roach88/calltrace/internal/scrape"
)

// ScrapeFunction is the function name scrape calls are recorded under.
const ScrapeFunction = "find_articles"

// DefaultScrapeSink is used when neither --sink nor a route is given.
const DefaultScrapeSink = "find_articles.txt"

// ScrapeOptions holds flags for the scrape command.
type ScrapeOptions struct {
	*RootOptions
	Sink    string
	Timeout time.Duration
}

// NewScrapeCommand creates the scrape command.
func NewScrapeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScrapeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Find matching articles on a listing page and record the call",
		Long: `Fetch an article listing page and print every preview whose text
contains one of the configured keywords, as "date – title – link".

The call is recorded as find_articles. Its sink is --sink, else the
config route for find_articles, else find_articles.txt.

Examples:
  calltrace scrape https://habr.com/ru/articles/
  calltrace scrape https://habr.com/ru/articles/ --config calltrace.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return formatter(opts.RootOptions, cmd).Fail(runScrape(opts, cmd, args[0]))
		},
	}

	cmd.Flags().StringVar(&opts.Sink, "sink", "", "sink location (overrides config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "HTTP request timeout")

	return cmd
}

func runScrape(opts *ScrapeOptions, cmd *cobra.Command, url string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	cfg.DefaultSink = scrapeSink(cfg, opts.Sink)
	cfg.Routes = nil

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	router, err := config.NewRouter(cfg, intercept.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	defer router.Close()

	ic, err := router.Interceptor(ScrapeFunction)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sink", err)
	}

	scrapeOpts := []scrape.Option{
		scrape.WithHTTPClient(&http.Client{Timeout: opts.Timeout}),
		scrape.WithLogger(logger),
	}
	if len(cfg.Scrape.Keywords) > 0 {
		scrapeOpts = append(scrapeOpts, scrape.WithKeywords(cfg.Scrape.Keywords...))
	}
	if cfg.Scrape.UserAgent != "" {
		scrapeOpts = append(scrapeOpts, scrape.WithUserAgent(cfg.Scrape.UserAgent))
	}
	scraper := scrape.New(scrapeOpts...)

	ctx := cmd.Context()
	find := intercept.Wrap1(ic, ScrapeFunction, func(url string) ([]string, error) {
		return scraper.FindArticles(ctx, url)
	})

	articles, err := find(url)
	if err != nil {
		if intercept.IsSinkWriteError(err) || intercept.IsSerializationError(err) {
			return WrapExitError(ExitCommandError, "call not recorded", err)
		}
		return WrapExitError(ExitFailure, "scrape failed", err)
	}

	f := formatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return f.Success(map[string]any{"url": url, "articles": articles})
	}
	if len(articles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching articles found.")
		return nil
	}
	for _, a := range articles {
		fmt.Fprintln(cmd.OutOrStdout(), a)
	}
	return nil
}

func scrapeSink(cfg *config.Config, override string) string {
	if override != "" {
		return override
	}
	if loc, ok := cfg.Routes[ScrapeFunction]; ok {
		return loc
	}
	return DefaultScrapeSink
}
