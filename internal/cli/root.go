// Package cli implements the productsearch command line tool.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/logger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	cfg        *config.Config
}

// NewRootCmd returns the productsearch command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "productsearch",
		Short:         "Build and query a product search index",
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetupWriter(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (defaults plus PS_* environment when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(newBuildCmd(opts))
	root.AddCommand(newQueryCmd(opts))
	root.AddCommand(newDemoCmd(opts))
	root.AddCommand(newStatsCmd(opts))
	root.AddCommand(newInvalidateCmd(opts, func() kafka.Publisher {
		return kafka.NewProducer(opts.cfg.Kafka, opts.cfg.Kafka.Topics.CacheInvalidate)
	}))
	return root
}

func renderTable(w io.Writer, headers []string, data [][]string) {
	if w == nil {
		w = os.Stdout
	}
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Bulk(data)
	table.Render()
}

func f3(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
