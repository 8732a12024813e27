package fl

import "time"

// Task is what the coordinator hands a client for one round.
type Task struct {
	RoundID     string         `json:"round_id"              cbor:"round_id"`
	ModelRef    string         `json:"model_ref,omitempty"   cbor:"model_ref,omitempty"`
	Parameters  [][]float32    `json:"parameters,omitempty"  cbor:"parameters,omitempty"`
	Evaluate    bool           `json:"evaluate,omitempty"    cbor:"evaluate,omitempty"`
	Hyperparams map[string]any `json:"hyperparams,omitempty" cbor:"hyperparams,omitempty"`
}

// Update is what a client sends back after training.
type Update struct {
	RoundID      string         `json:"round_id"       cbor:"round_id"`
	ClientID     string         `json:"proplet_id"     cbor:"proplet_id"`
	BaseModelURI string         `json:"base_model_uri" cbor:"base_model_uri"`
	NumSamples   int            `json:"num_samples"    cbor:"num_samples"`
	Metrics      map[string]any `json:"metrics"        cbor:"metrics"`
	Parameters   [][]float32    `json:"update"         cbor:"update"`
	SentAt       time.Time      `json:"sent_at"        cbor:"sent_at"`
}

type RoundKind string

const (
	KindFit      RoundKind = "fit"
	KindEvaluate RoundKind = "evaluate"
)

// RoundRecord is the local history entry for one engine pass.
type RoundRecord struct {
	RoundID   string        `json:"round_id"`
	Kind      RoundKind     `json:"kind"`
	Loss      *float64      `json:"loss,omitempty"`
	Accuracy  *float64      `json:"accuracy,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}
