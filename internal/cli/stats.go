package cli

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/indexer/store"
	"github.com/spf13/cobra"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var indexDir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Describe the current build and list retained builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			if indexDir == "" {
				indexDir = root.cfg.Search.IndexDir
			}
			b, err := store.Open(indexDir)
			if err != nil {
				return err
			}
			s := b.Set.Stats()
			w := cmd.OutOrStdout()
			version := b.Manifest.Version
			if version == "" {
				version = "(unversioned)"
			}
			fmt.Fprintf(w, "current build %s in %s\n", version, b.Dir)
			renderTable(w, []string{"Metric", "Value"}, [][]string{
				{"documents", fmt.Sprint(s.Documents)},
				{"title terms", fmt.Sprint(s.TitleTerms)},
				{"title postings", fmt.Sprint(s.TitlePostings)},
				{"description terms", fmt.Sprint(s.DescriptionTerms)},
				{"description postings", fmt.Sprint(s.DescriptionPostings)},
				{"brand terms", fmt.Sprint(s.BrandTerms)},
				{"origin terms", fmt.Sprint(s.OriginTerms)},
				{"reviewed documents", fmt.Sprint(s.ReviewedDocuments)},
				{"skipped entries", fmt.Sprint(b.Skipped)},
			})

			builds, err := store.ListBuilds(indexDir)
			if err != nil {
				return err
			}
			if len(builds) > 0 {
				rows := make([][]string, len(builds))
				for i, v := range builds {
					marker := ""
					if v == b.Manifest.Version {
						marker = "*"
					}
					rows[i] = []string{v, marker}
				}
				renderTable(w, []string{"Build", "Current"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&indexDir, "index", "", "index root directory (default search.indexDir)")
	return cmd
}
