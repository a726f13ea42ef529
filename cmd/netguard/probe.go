package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GamePathAi/gamepathai-sub000/diag"
)

func newProbeCmd() *cobra.Command {
	var maxHops int
	cmd := &cobra.Command{
		Use:   "probe <url>",
		Short: "Walk the redirect chain of an endpoint and report each hop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol, err := policyFromViper()
			if err != nil {
				return err
			}
			prober := diag.NewProber(pol, diag.WithMaxHops(maxHops))
			chain, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for i, hop := range chain {
				line := fmt.Sprintf("%d. %s [%d]", i+1, hop.URL, hop.HTTPStatus)
				if hop.WasRedirected {
					line += " -> " + hop.FinalURL
				}
				if hop.ClientSideRedirect {
					line += " (client-side redirect)"
				}
				if hop.IsKnownBadHost {
					line += " !! known-bad host"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if findings := diag.CheckForInterference(); len(findings) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "possible interference:")
				for _, f := range findings {
					fmt.Fprintln(cmd.OutOrStdout(), "  -", f)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxHops, "max-hops", 10, "Maximum redirect hops to follow.")
	return cmd
}
