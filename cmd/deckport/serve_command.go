package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deckport/internal/blobserver"
	"deckport/internal/blobstore"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve migrated assets over HTTP at their access URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			addr := cfg.Blob.Bind
			if bind != "" {
				addr = bind
			}

			blobs, err := blobstore.New(cfg.BlobDir(), logger)
			if err != nil {
				return fmt.Errorf("open blob store: %w", err)
			}
			defer blobs.Close()

			return blobserver.New(blobs, cfg.Blob.Bucket, logger).Serve(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override the configured listen address")
	return cmd
}
