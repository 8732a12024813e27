package flclient

import (
	"errors"
	"fmt"
	"os"

	"github.com/absmach/flclient/pkg/layer"
	"github.com/pelletier/go-toml"
)

// Config describes the model a client trains. Deployment settings such as
// addresses and credentials come from the environment instead.
type Config struct {
	Model  ModelConfig  `toml:"model"`
	Data   DataConfig   `toml:"data"`
	Engine EngineConfig `toml:"engine"`
}

type ModelConfig struct {
	// Path is the canonical model file, replaced after every fit.
	Path   string             `toml:"path"`
	Layers []layer.Descriptor `toml:"layers"`
}

type DataConfig struct {
	Train string `toml:"train"`
	Test  string `toml:"test"`
}

type EngineConfig struct {
	Module string `toml:"module"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Model.Path == "":
		return errors.New("model.path is required")
	case c.Data.Train == "":
		return errors.New("data.train is required")
	case c.Data.Test == "":
		return errors.New("data.test is required")
	case c.Engine.Module == "":
		return errors.New("engine.module is required")
	}

	_, err := c.Registry()

	return err
}

// Registry builds the layer registry in declaration order.
func (c *Config) Registry() (layer.Registry, error) {
	return layer.NewRegistry(c.Model.Layers...)
}
