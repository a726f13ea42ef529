package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	netguard "github.com/GamePathAi/gamepathai-sub000"
)

func newFetchCmd() *cobra.Command {
	var (
		method     string
		ttl        time.Duration
		privileged bool
		skipAuth   bool
		timeout    time.Duration
		retries    int
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Dispatch one request through the secure fetch pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cleanup, err := clientFromViper()
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := client.Dispatch(cmd.Context(), args[0], netguard.Options{
				Method:     method,
				TTL:        ttl,
				Privileged: privileged,
				SkipAuth:   skipAuth,
				Timeout:    timeout,
				RetryCount: retries,
			})
			if err != nil {
				var ngErr *netguard.Error
				if errors.As(err, &ngErr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", ngErr.Kind, ngErr.Message)
					if ngErr.Hint != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s\n", ngErr.Hint)
					}
				}
				return err
			}
			if len(data) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no content)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "GET", "HTTP method.")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Cache TTL for GET responses (0 disables caching).")
	cmd.Flags().BoolVar(&privileged, "privileged", false, "Mark as a model-backend operation.")
	cmd.Flags().BoolVar(&skipAuth, "skip-auth", false, "Do not attach the Authorization header.")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-attempt timeout (0 uses the client default).")
	cmd.Flags().IntVar(&retries, "retries", 0, "Retry count (0 uses the client default, negative disables).")
	return cmd
}
