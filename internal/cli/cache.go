package cli

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/kafka"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newInvalidateCmd(root *rootOptions, publisher func() kafka.Publisher) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "invalidate-cache",
		Short: "Ask every searcher to drop its cached results",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub := publisher()
			if closer, ok := pub.(interface{ Close() error }); ok {
				defer closer.Close()
			}
			event := cache.InvalidateEvent{Reason: reason, RequestedAt: time.Now().UTC()}
			err := pub.Publish(cmd.Context(), kafka.Event{
				Key:   uuid.NewString(),
				Type:  cache.EventInvalidate,
				Value: event,
			})
			if err != nil {
				return fmt.Errorf("publishing invalidate event: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cache invalidation requested on %s\n", root.cfg.Kafka.Topics.CacheInvalidate)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded in searcher logs")
	return cmd
}
