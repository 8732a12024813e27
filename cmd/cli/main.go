package main

import (
	"log"

	"github.com/absmach/flclient/cli"
	"github.com/absmach/flclient/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defClientURL       = "http://localhost:7080"
	defTLSVerification = false
)

func main() {
	var clientURL string

	rootCmd := &cobra.Command{
		Use:   "flclient-cli",
		Short: "Federated learning client CLI",
		Long:  `flclient-cli is a command line interface for a running federated learning client.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				ClientURL:       clientURL,
				TLSVerification: defTLSVerification,
			}
			cli.SetSDK(sdk.NewSDK(sdkConf))
		},
	}
	rootCmd.PersistentFlags().StringVarP(&clientURL, "client-url", "u", defClientURL, "Client API URL")

	rootCmd.AddCommand(
		cli.NewLayersCmd(),
		cli.NewParamsCmd(),
		cli.NewFitCmd(),
		cli.NewEvaluateCmd(),
		cli.NewRoundsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
