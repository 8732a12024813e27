package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/absmach/flclient/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	fsdk    sdk.SDK
	roundID string
	kind    string
)

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func NewLayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List model layers",
		Long:  `List the model layers in the order parameter vectors use.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			layers, err := fsdk.Layers()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, layers)
		},
	}
}

func NewParamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params [get|set]",
		Short: "Model parameters",
		Long:  `Read the trained parameters or seed the next round with new ones.`,
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Get trained parameters",
		Long:  `Get trained parameters. A client that was never fitted trains once first.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			params, err := fsdk.Parameters()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, map[string]any{"parameters": params})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <file.json>",
		Short: "Set parameters for the next round",
		Long: `Set parameters for the next round from a JSON file holding one array per layer.

Examples:
  # Seed both layers of a two layer model
  echo '[[0.1, 0.2, 0.3, 0.4], [0.5, 0.6]]' > params.json
  flclient-cli params set params.json`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			params, err := readParams(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if err := fsdk.SetParameters(params); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}

	cmd.AddCommand(getCmd, setCmd)

	return cmd
}

func NewFitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Run a training round",
		Long:  `Run a training round and publish the resulting model.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			if err := fsdk.Fit(roundID); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd)
		},
	}
	cmd.Flags().StringVar(&roundID, "round-id", "", "Round ID recorded in the client's history")

	return cmd
}

func NewEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the model",
		Long:  `Run one evaluation pass over the test data.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			ev, err := fsdk.Evaluate(roundID)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, ev)
		},
	}
	cmd.Flags().StringVar(&roundID, "round-id", "", "Round ID recorded in the client's history")

	return cmd
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [round_id]",
		Short: "List round history",
		Long:  `List the fit and evaluation rounds this client has run, or show one of them.`,
		Run: func(cmd *cobra.Command, args []string) {
			switch len(args) {
			case 0:
				rounds, err := fsdk.Rounds()
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, rounds)
			case 1:
				round, err := fsdk.Round(args[0], kind)
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, round)
			default:
				logUsageCmd(*cmd, cmd.Use)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Round kind to show: fit or evaluate")

	return cmd
}

func readParams(path string) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var params [][]float32
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return params, nil
}
