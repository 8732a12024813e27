package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/flclient/pkg/sdk"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSDK struct {
	set     [][]float32
	roundID string
	kind    string
	err     error
}

func (s *stubSDK) Layers() ([]sdk.Layer, error) {
	return []sdk.Layer{{Name: "fc", Shape: []int{2}}}, s.err
}

func (s *stubSDK) Parameters() ([][]float32, error) {
	return [][]float32{{1, 2}}, s.err
}

func (s *stubSDK) SetParameters(params [][]float32) error {
	s.set = params

	return s.err
}

func (s *stubSDK) Fit(roundID string) error {
	s.roundID = roundID

	return s.err
}

func (s *stubSDK) Evaluate(roundID string) (sdk.Evaluation, error) {
	s.roundID = roundID

	return sdk.Evaluation{Loss: 0.2, Accuracy: 80}, s.err
}

func (s *stubSDK) Rounds() ([]sdk.Round, error) {
	return nil, s.err
}

func (s *stubSDK) Round(roundID, kind string) (sdk.Round, error) {
	s.roundID = roundID
	s.kind = kind

	return sdk.Round{RoundID: roundID, Kind: "evaluate"}, s.err
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

// The commands share the package-level SDK, so these tests run serially.
func TestCommands(t *testing.T) {
	color.NoColor = true

	dir := t.TempDir()
	paramsFile := filepath.Join(dir, "params.json")
	require.NoError(t, os.WriteFile(paramsFile, []byte(`[[0.5, 0.25]]`), 0o644))

	stub := &stubSDK{}
	SetSDK(stub)

	out, _ := execute(t, NewLayersCmd())
	assert.Contains(t, out, `"fc"`)

	out, _ = execute(t, NewParamsCmd(), "get")
	assert.Contains(t, out, `"parameters"`)

	out, _ = execute(t, NewParamsCmd(), "set", paramsFile)
	assert.Contains(t, out, "ok")
	assert.Equal(t, [][]float32{{0.5, 0.25}}, stub.set)

	_, _ = execute(t, NewFitCmd(), "--round-id", "r-7")
	assert.Equal(t, "r-7", stub.roundID)

	out, _ = execute(t, NewEvaluateCmd())
	assert.Contains(t, out, `"accuracy": 80`)

	out, _ = execute(t, NewRoundsCmd(), "r-3", "--kind", "evaluate")
	assert.Contains(t, out, `"round_id": "r-3"`)
	assert.Equal(t, "evaluate", stub.kind)

	out, _ = execute(t, NewRoundsCmd(), "r-3", "r-4")
	assert.Contains(t, out, "usage: rounds")

	out, _ = execute(t, NewLayersCmd(), "extra")
	assert.Contains(t, out, "usage: layers")

	stub.err = errors.New("connection refused")
	_, errOut := execute(t, NewRoundsCmd())
	assert.Contains(t, errOut, "connection refused")

	_, errOut = execute(t, NewParamsCmd(), "set", filepath.Join(dir, "absent.json"))
	assert.Contains(t, errOut, "error:")
}
