package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/config"
	"github.com/spf13/cobra"
)

func openEngine(cfg *config.Config, indexDir string) (*engine.Engine, error) {
	if indexDir == "" {
		indexDir = cfg.Search.IndexDir
	}
	return engine.Open(engine.Options{
		IndexDir:   indexDir,
		Params:     ranker.ParamsFromConfig(cfg.Search.Ranking),
		MaxResults: cfg.Search.MaxResults,
	})
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	var (
		indexDir   string
		searchType string
		limit      int
		asJSON     bool
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: "Search the index and print ranked products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(root.cfg, indexDir)
			if err != nil {
				return err
			}
			env, err := eng.Search(cmd.Context(), engine.Request{
				Query: strings.Join(args, " "),
				Type:  searchType,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if save {
				saver := results.NewSaver(root.cfg.Search.ResultsDir, 1, root.cfg.Search.SaveTimeout)
				path, err := saver.Write(context.WithoutCancel(cmd.Context()), env)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", path)
			}
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(env)
			}
			printEnvelope(w, env)
			return nil
		},
	}
	cmd.Flags().StringVar(&indexDir, "index", "", "index root directory (default search.indexDir)")
	cmd.Flags().StringVarP(&searchType, "type", "t", "any", "search type: any, all, exact")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum results, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response envelope")
	cmd.Flags().BoolVar(&save, "save", false, "also write the envelope to search.resultsDir")
	return cmd
}

func printEnvelope(w io.Writer, env results.Envelope) {
	m := env.Metadata
	fmt.Fprintf(w, "%q (%s): %d of %d products matched, showing %d\n",
		m.Query, m.SearchType, m.FilteredDocuments, m.TotalDocuments, len(env.Results))
	if len(env.Results) == 0 {
		return
	}
	rows := make([][]string, len(env.Results))
	for i, r := range env.Results {
		rows[i] = []string{
			fmt.Sprint(i + 1),
			f3(r.Score),
			r.Title,
			r.URL,
			f3(r.Scores.BM25),
			f3(r.Scores.ExactMatch),
			f3(r.Scores.Review),
			f3(r.Scores.TitleMatch),
			f3(r.Scores.OriginMatch),
		}
	}
	renderTable(w, []string{"#", "Score", "Title", "URL", "BM25", "Exact", "Review", "Title Match", "Origin"}, rows)
}
