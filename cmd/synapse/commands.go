package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/synapse/plugin/ai/duplicate"
	"github.com/hrygo/synapse/server/retrieval"
	"github.com/hrygo/synapse/store"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		nodeType string
		markers  []string
	)

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a note and index it",
		Example: `  synapse add "Morning coffee on the balcony" --markers joy
  synapse add "File the quarterly taxes" --type task`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(args[0])
			if content == "" {
				return fmt.Errorf("content must not be empty")
			}
			return opts.withApp(cmd.Context(), 0, func(a *app) error {
				node, err := a.store.CreateNode(cmd.Context(), &store.Node{
					Content:          content,
					NodeType:         nodeType,
					EmotionalMarkers: markers,
				})
				if err != nil {
					return err
				}
				report := a.runner.EnsureIndexed(cmd.Context(), []*store.Node{node})
				if report.Failed > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "note stored but not indexed yet; run `synapse index` later\n")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", node.ID)

				if _, err := a.warm(cmd.Context()); err != nil {
					slog.Debug("skipping duplicate check", "error", err)
					return nil
				}
				resp, err := a.detector.Detect(cmd.Context(), &duplicate.DetectRequest{
					Content:          content,
					EmotionalMarkers: markers,
					ExcludeID:        node.ID,
					TopK:             3,
				})
				if err == nil {
					printDuplicates(cmd.ErrOrStderr(), resp)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&nodeType, "type", "note", "Node type")
	cmd.Flags().StringSliceVar(&markers, "markers", nil, "Emotional markers, comma separated")
	return cmd
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed notes not yet indexed with the current model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), 0, func(a *app) error {
				if watch {
					a.runner.Run(cmd.Context())
					return nil
				}
				report, err := a.runner.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d, skipped %d, failed %d\n",
					report.Indexed, report.Skipped, report.Failed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and index new notes periodically")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		mode  string
		limit int
		tags  []string
		types []string
		since time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search notes by meaning",
		Long: `Search notes by meaning.

With --tags, --types or --since the search is multi-modal: results are ranked
by the optional query and then filtered. Multi-modal search needs the plus
tier or higher.`,
		Example: `  synapse search "coffee"
  synapse search --mode local --limit 5 "taxes"
  synapse search --tags anxiety --since 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			multiModal := len(tags) > 0 || len(types) > 0 || since > 0
			if query == "" && !multiModal {
				return fmt.Errorf("a query or a filter is required")
			}

			return opts.withApp(cmd.Context(), limit, func(a *app) error {
				ctx := cmd.Context()
				if _, err := a.warm(ctx); err != nil {
					return err
				}

				var (
					outcome *retrieval.SearchOutcome
					err     error
				)
				if multiModal {
					filters := retrieval.MultiModalFilters{Text: query, EmotionalTags: tags, NodeTypes: types}
					if since > 0 {
						filters.TimeRange = &retrieval.TimeRange{Start: time.Now().Add(-since)}
					}
					outcome, err = a.orchestrator.MultiModalSearch(ctx, filters)
				} else {
					outcome, err = a.orchestrator.GlobalSearch(ctx, query, retrieval.ParseSearchMode(mode))
				}
				if err != nil {
					return err
				}
				return printOutcome(cmd.OutOrStdout(), outcome, opts.jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "auto", "Search mode: auto, local or remote")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results to return")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Keep notes with any of these emotional markers")
	cmd.Flags().StringSliceVar(&types, "types", nil, "Keep notes of these types")
	cmd.Flags().DurationVar(&since, "since", 0, "Keep notes created within this duration, e.g. 720h")
	return cmd
}

func newSimilarCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <node-id>",
		Short: "List the notes most similar to a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validatePositiveInt(limit, "limit"); err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), limit, func(a *app) error {
				ctx := cmd.Context()
				node, err := a.store.GetNode(ctx, args[0])
				if err != nil {
					return fmt.Errorf("loading node %s: %w", args[0], err)
				}
				if _, err := a.warm(ctx); err != nil {
					return err
				}
				results, err := a.orchestrator.FindSimilarNodes(ctx, node, limit)
				if err != nil {
					return err
				}
				return printResults(cmd.OutOrStdout(), results, opts.jsonOutput)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum results to return")
	return cmd
}

func newClusterCmd(opts *rootOptions) *cobra.Command {
	var minSimilarity float64

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Group similar notes",
		Long: `Group similar notes.

Clustering is greedy and depends on indexing order: each note joins the first
cluster whose seed is similar enough. Single-note clusters are not shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if minSimilarity < -1 || minSimilarity > 1 {
				return fmt.Errorf("min-similarity must be within [-1, 1], got %g", minSimilarity)
			}
			return opts.withApp(cmd.Context(), 0, func(a *app) error {
				ctx := cmd.Context()
				if _, err := a.warm(ctx); err != nil {
					return err
				}
				clusters := a.index.Cluster(minSimilarity)

				out := cmd.OutOrStdout()
				if opts.jsonOutput {
					return writeJSON(out, clusters)
				}
				if len(clusters) == 0 {
					fmt.Fprintln(out, "No clusters found")
					return nil
				}
				for i, cluster := range clusters {
					fmt.Fprintf(out, "Cluster %d (%d notes)\n", i+1, len(cluster))
					for _, id := range cluster {
						preview := ""
						if node, err := a.store.GetNode(ctx, id); err == nil {
							preview = truncate(node.Content, 60)
						}
						fmt.Fprintf(out, "  %s  %s\n", id, preview)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0.8, "Minimum cosine similarity to the cluster seed")
	return cmd
}

func newCreditsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Show the remaining remote search credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd.Context(), 0, func(a *app) error {
				remaining, err := a.store.Remaining(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d credits remaining\n", remaining)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <amount>",
		Short: "Add remote search credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			if err := validatePositiveInt(amount, "amount"); err != nil {
				return err
			}
			return opts.withApp(cmd.Context(), 0, func(a *app) error {
				if err := a.store.Grant(cmd.Context(), amount); err != nil {
					return err
				}
				remaining, err := a.store.Remaining(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d credits remaining\n", remaining)
				return nil
			})
		},
	})
	return cmd
}

func printOutcome(w io.Writer, outcome *retrieval.SearchOutcome, asJSON bool) error {
	if asJSON {
		return writeJSON(w, outcome)
	}
	fmt.Fprintf(w, "mode: %s", outcome.Ran)
	if outcome.Fallback {
		fmt.Fprint(w, " (fallback)")
	}
	if outcome.Reason != "" {
		fmt.Fprintf(w, ", %s", outcome.Reason)
	}
	fmt.Fprintln(w)
	return printResults(w, outcome.Results, false)
}

func printResults(w io.Writer, results []retrieval.SearchResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No results")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SCORE\tNODE\tSNIPPET\tRELATED\n")
	fmt.Fprintf(tw, "-----\t----\t-------\t-------\n")
	for _, r := range results {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n",
			r.RelevanceScore,
			r.NodeID,
			truncate(r.HighlightedSnippet, 60),
			strings.Join(r.RelatedNodeIDs, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nFound %d result(s)\n", len(results))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

// printDuplicates warns about stored notes the new note repeats or relates to.
func printDuplicates(w io.Writer, resp *duplicate.DetectResponse) {
	for _, d := range resp.Duplicates {
		fmt.Fprintf(w, "possible duplicate of %s (%.0f%%): %s\n", d.ID, d.Similarity*100, d.Title)
	}
	for _, r := range resp.Related {
		fmt.Fprintf(w, "related to %s (%.0f%%): %s\n", r.ID, r.Similarity*100, r.Title)
	}
}

// truncate shortens a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// validatePositiveInt returns error if n is not positive.
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}
