package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const CTJSON string = "application/json"

var ErrUnexpectedCode = errors.New("unexpected response code")

type Layer struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

type Evaluation struct {
	RoundID  string  `json:"round_id,omitempty"`
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

type Round struct {
	RoundID   string        `json:"round_id"`
	Kind      string        `json:"kind"`
	Loss      *float64      `json:"loss,omitempty"`
	Accuracy  *float64      `json:"accuracy,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

type SDK interface {
	// Layers lists the model layers in registry order.
	//
	// example:
	//  layers, _ := sdk.Layers()
	//  fmt.Println(layers)
	Layers() ([]Layer, error)

	// Parameters returns the trained weights, one flat vector per layer.
	// The client trains once first if it has never been fitted.
	Parameters() ([][]float32, error)

	// SetParameters stores weights to seed the next round. Shapes are
	// checked when that round starts, not here.
	//
	// example:
	//  _ := sdk.SetParameters([][]float32{{0.1, 0.2}, {0.3}})
	SetParameters(params [][]float32) error

	// Fit runs a training round. roundID may be empty.
	Fit(roundID string) error

	// Evaluate runs a single evaluation pass. roundID may be empty.
	Evaluate(roundID string) (Evaluation, error)

	// Rounds lists the locally recorded rounds, oldest first.
	Rounds() ([]Round, error)

	// Round returns one recorded round. kind is "fit" or "evaluate"; empty
	// means "fit".
	//
	// example:
	//  round, _ := sdk.Round("r-1", "evaluate")
	//  fmt.Println(round.Loss)
	Round(roundID, kind string) (Round, error)
}

type flSDK struct {
	clientURL string
	client    *http.Client
}

type Config struct {
	ClientURL       string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &flSDK{
		clientURL: cfg.ClientURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *flSDK) Layers() ([]Layer, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.clientURL+"/layers", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res struct {
		Layers []Layer `json:"layers"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	return res.Layers, nil
}

func (sdk *flSDK) Parameters() ([][]float32, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.clientURL+"/parameters", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res struct {
		Parameters [][]float32 `json:"parameters"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	return res.Parameters, nil
}

func (sdk *flSDK) SetParameters(params [][]float32) error {
	data, err := json.Marshal(map[string][][]float32{"parameters": params})
	if err != nil {
		return err
	}

	_, err = sdk.processRequest(http.MethodPut, sdk.clientURL+"/parameters", data, http.StatusNoContent)

	return err
}

func (sdk *flSDK) Fit(roundID string) error {
	_, err := sdk.processRequest(http.MethodPost, sdk.roundURL("/fit", roundID), nil, http.StatusOK)

	return err
}

func (sdk *flSDK) Evaluate(roundID string) (Evaluation, error) {
	body, err := sdk.processRequest(http.MethodPost, sdk.roundURL("/evaluate", roundID), nil, http.StatusOK)
	if err != nil {
		return Evaluation{}, err
	}

	var ev Evaluation
	if err := json.Unmarshal(body, &ev); err != nil {
		return Evaluation{}, err
	}

	return ev, nil
}

func (sdk *flSDK) Rounds() ([]Round, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.clientURL+"/rounds", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res struct {
		Rounds []Round `json:"rounds"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	return res.Rounds, nil
}

func (sdk *flSDK) Round(roundID, kind string) (Round, error) {
	u := sdk.clientURL + "/rounds/" + url.PathEscape(roundID)
	if kind != "" {
		u += "?" + url.Values{"kind": {kind}}.Encode()
	}

	body, err := sdk.processRequest(http.MethodGet, u, nil, http.StatusOK)
	if err != nil {
		return Round{}, err
	}

	var r Round
	if err := json.Unmarshal(body, &r); err != nil {
		return Round{}, err
	}

	return r, nil
}

func (sdk *flSDK) roundURL(path, roundID string) string {
	u := sdk.clientURL + path
	if roundID != "" {
		u += "?" + url.Values{"round_id": {roundID}}.Encode()
	}

	return u
}

func (sdk *flSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return []byte{}, fmt.Errorf("%w %d: %s", ErrUnexpectedCode, resp.StatusCode, apiErr.Error)
		}

		return []byte{}, fmt.Errorf("%w: %d", ErrUnexpectedCode, resp.StatusCode)
	}

	return body, nil
}
