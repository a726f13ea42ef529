package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	netguard "github.com/GamePathAi/gamepathai-sub000"
	"github.com/GamePathAi/gamepathai-sub000/credstore"
	"github.com/GamePathAi/gamepathai-sub000/policy"
)

const envPrefix = "NETGUARD"

var version = "dev"

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "netguard",
		Short: "Secure fetch, redirect probing and endpoint diagnostics",
	}

	cmd.PersistentFlags().String("environment", "production", "Runtime environment: production|test|development.")
	cmd.PersistentFlags().String("base-url", "", "Origin that relative API paths resolve against.")
	cmd.PersistentFlags().String("policy-file", "", "YAML policy file extending the built-in trust tables (optional).")
	cmd.PersistentFlags().String("cred-db", "", "Path to the credential database (optional).")

	_ = viper.BindPFlag("environment", cmd.PersistentFlags().Lookup("environment"))
	_ = viper.BindPFlag("base_url", cmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("policy_file", cmd.PersistentFlags().Lookup("policy-file"))
	_ = viper.BindPFlag("cred_db", cmd.PersistentFlags().Lookup("cred-db"))

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newProbeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func policyFromViper() (*policy.Policy, error) {
	mode := policy.ModeFromEnvironment(viper.GetString("environment"))
	if path := viper.GetString("policy_file"); path != "" {
		p, err := policy.Load(path)
		if err != nil {
			return nil, err
		}
		p.Mode = mode
		return p, nil
	}
	return policy.Default(mode), nil
}

func clientFromViper() (*netguard.Client, func(), error) {
	pol, err := policyFromViper()
	if err != nil {
		return nil, nil, err
	}
	opts := []netguard.Option{
		netguard.WithPolicy(pol),
	}
	cleanup := func() {}
	if base := viper.GetString("base_url"); base != "" {
		opts = append(opts, netguard.WithBaseURL(base))
	}
	if path := viper.GetString("cred_db"); path != "" {
		store, err := credstore.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open credential store: %w", err)
		}
		opts = append(opts, netguard.WithCredentials(store))
		cleanup = func() { _ = store.Close() }
	}
	return netguard.New(opts...), cleanup, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the netguard version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "netguard", version)
		},
	}
}
