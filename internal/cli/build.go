package cli

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	"github.com/spf13/cobra"
)

func newBuildCmd(root *rootOptions) *cobra.Command {
	var corpus, out, synonymsPath string
	var workers, retain int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build an index from a JSONL or JSON-array corpus file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if corpus == "" {
				corpus = cfg.Indexer.CorpusPath
			}
			if out == "" {
				out = cfg.Indexer.OutputDir
			}
			if workers <= 0 {
				workers = cfg.Indexer.Workers
			}
			if synonymsPath == "" {
				synonymsPath = cfg.Indexer.SynonymsPath
			}
			if retain < 0 {
				retain = cfg.Indexer.RetainBuilds
			}

			var synonyms index.Synonyms
			if synonymsPath != "" {
				var err error
				if synonyms, err = index.LoadSynonyms(synonymsPath); err != nil {
					return err
				}
			}

			pipeline := indexer.NewPipeline(
				catalog.FileSource{Path: corpus},
				indexer.NewBuilder(workers),
				store.NewWriter(out, retain),
				synonyms,
			)
			res, err := pipeline.Run(cmd.Context())
			if err != nil {
				return err
			}

			s := res.Manifest.Stats
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "built %s into %s\n", res.Manifest.Version, out)
			renderTable(w, []string{"Metric", "Value"}, [][]string{
				{"documents", fmt.Sprint(s.Documents)},
				{"malformed lines", fmt.Sprint(res.Load.Malformed)},
				{"missing url", fmt.Sprint(res.Load.MissingURL)},
				{"duplicate urls", fmt.Sprint(res.Load.Duplicates)},
				{"title terms", fmt.Sprint(s.TitleTerms)},
				{"description terms", fmt.Sprint(s.DescriptionTerms)},
				{"brand terms", fmt.Sprint(s.BrandTerms)},
				{"origin terms", fmt.Sprint(s.OriginTerms)},
				{"reviewed documents", fmt.Sprint(s.ReviewedDocuments)},
				{"duration", res.Duration.String()},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&corpus, "corpus", "", "corpus file (default indexer.corpusPath)")
	cmd.Flags().StringVar(&out, "out", "", "index root directory (default indexer.outputDir)")
	cmd.Flags().StringVar(&synonymsPath, "synonyms", "", "origin synonyms JSON file (default built-in table)")
	cmd.Flags().IntVar(&workers, "workers", 0, "build workers (default indexer.workers)")
	cmd.Flags().IntVar(&retain, "retain", -1, "builds to keep, 0 keeps all (default indexer.retainBuilds)")
	return cmd
}
