package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/engine"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/results"
	"github.com/spf13/cobra"
)

var demoQueries = []string{
	"box of chocolate candy",
	"black shirt",
	"american made products",
	"high rated items",
}

func newDemoCmd(root *rootOptions) *cobra.Command {
	var (
		indexDir   string
		top        int
		save       bool
		resultsDir string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the sample queries in every search type",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine(root.cfg, indexDir)
			if err != nil {
				return err
			}
			if resultsDir == "" {
				resultsDir = root.cfg.Search.ResultsDir
			}
			// One directory per mode: the same query saved in three modes
			// within a second would otherwise share a file name.
			savers := make(map[query.Mode]*results.Saver)
			w := cmd.OutOrStdout()
			saved := 0
			for _, q := range demoQueries {
				for _, mode := range []query.Mode{query.ModeAny, query.ModeAll, query.ModeExact} {
					env, err := eng.Search(cmd.Context(), engine.Request{Query: q, Type: string(mode), Limit: top})
					if err != nil {
						return err
					}
					printEnvelope(w, env)
					fmt.Fprintln(w)
					if !save {
						continue
					}
					saver, ok := savers[mode]
					if !ok {
						saver = results.NewSaver(filepath.Join(resultsDir, string(mode)), 1, root.cfg.Search.SaveTimeout)
						savers[mode] = saver
					}
					if _, err := saver.Write(context.WithoutCancel(cmd.Context()), env); err != nil {
						return err
					}
					saved++
				}
			}
			if save {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %d result files under %s\n", saved, resultsDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&indexDir, "index", "", "index root directory (default search.indexDir)")
	cmd.Flags().IntVar(&top, "top", 3, "results shown per query")
	cmd.Flags().BoolVar(&save, "save", false, "write each result envelope to <results-dir>/<type>/")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "results directory (default search.resultsDir)")
	return cmd
}
