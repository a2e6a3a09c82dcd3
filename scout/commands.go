package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DeafMist/thread-scout/internal/config"
	"github.com/DeafMist/thread-scout/internal/engine"
	"github.com/DeafMist/thread-scout/internal/llm"
	"github.com/DeafMist/thread-scout/internal/logger"
	"github.com/DeafMist/thread-scout/internal/models"
)

type researchEngine interface {
	Run(ctx context.Context, q models.Query) (*models.SearchResponse, error)
	Estimate(q models.Query) (llm.Estimate, error)
}

var newEngine = func(ctx context.Context) (researchEngine, error) {
	cfg, err := config.LoadEngine()
	if err != nil {
		return nil, err
	}
	return engine.FromConfig(ctx, cfg, logger.New("scout"))
}

type queryFlags struct {
	multiAgent       bool
	agents           int
	maxPosts         int
	model            string
	coordinatorModel string
	asJSON           bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.multiAgent, "multi-agent", false, "Use parallel web-search agents instead of the traditional pipeline")
	cmd.Flags().IntVar(&f.agents, "agents", 0, "Number of research agents (1-5)")
	cmd.Flags().IntVar(&f.maxPosts, "max-posts", 0, "Posts to analyze in traditional mode (1-10)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model for the traditional summary")
	cmd.Flags().StringVar(&f.coordinatorModel, "coordinator-model", "", "Model for multi-agent synthesis")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the raw JSON response")
}

func (f *queryFlags) query(args []string) models.Query {
	q := models.Query{
		Text:             strings.Join(args, " "),
		MaxPosts:         f.maxPosts,
		AgentCount:       f.agents,
		Model:            f.model,
		CoordinatorModel: f.coordinatorModel,
	}
	if f.multiAgent {
		q.Mode = models.ModeMultiAgent
	}
	return q
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "scout",
		Short:        "Research Reddit discussions and summarize them",
		SilenceUsage: true,
	}
	root.AddCommand(searchCmd(), estimateCmd())
	return root
}

func searchCmd() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search Reddit and print a summarized answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(ctx)
			if err != nil {
				return err
			}
			resp, err := eng.Run(ctx, f.query(args))
			if err != nil {
				return err
			}
			if f.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func estimateCmd() *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "estimate <query...>",
		Short: "Estimate tokens and cost without calling any provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cmd.Context())
			if err != nil {
				return err
			}
			est, err := eng.Estimate(f.query(args))
			if err != nil {
				return err
			}
			if f.asJSON {
				return printJSON(cmd.OutOrStdout(), est)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mode: %s\n", est.SearchMode)
			fmt.Fprintf(out, "tokens: %d in / %d out\n", est.Tokens.Input, est.Tokens.Output)
			fmt.Fprintf(out, "estimated cost: $%.4f\n", est.TotalCost)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(w io.Writer, resp *models.SearchResponse) {
	fmt.Fprintf(w, "%s\n\n", resp.Summary)

	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for i, s := range resp.Sources {
			fmt.Fprintf(w, "  %d. %s (r/%s, %d upvotes, %d comments)\n     %s\n", i+1, s.Title, s.Subreddit, s.Upvotes, s.NumComments, s.URL)
		}
	}
	if len(resp.RedditURLs) > 0 {
		fmt.Fprintln(w, "Reddit threads:")
		for _, u := range resp.RedditURLs {
			fmt.Fprintf(w, "  - %s\n", u)
		}
	}
	if len(resp.EnhancedLinks) > 0 {
		terms := make([]string, 0, len(resp.EnhancedLinks))
		for term := range resp.EnhancedLinks {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		fmt.Fprintln(w, "Where to look:")
		for _, term := range terms {
			fmt.Fprintf(w, "  %s\n", term)
			for _, l := range resp.EnhancedLinks[term] {
				fmt.Fprintf(w, "    - %s: %s\n", l.Domain, l.URL)
			}
		}
	}
	if a := resp.AgentSummary; a != nil {
		fmt.Fprintf(w, "\nagents: %d/%d succeeded\n", a.SuccessfulSearches, a.TotalSearches)
	}
	fmt.Fprintf(w, "\n[%s, %s, %.1fs]\n", resp.SearchMode, resp.Model, resp.ExecutionTime)
}
