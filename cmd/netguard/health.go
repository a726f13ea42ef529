package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend health through the secure fetch pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cleanup, err := clientFromViper()
			if err != nil {
				return err
			}
			defer cleanup()

			hs, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s version=%s environment=%s\n",
				hs.Status, hs.Version, hs.Environment)
			return nil
		},
	}
}
