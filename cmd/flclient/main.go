package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/flclient/pkg/registry"
	"github.com/absmach/flclient/pkg/server"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	svcName     = "flclient"
	defHTTPPort = "7080"
)

type envConfig struct {
	LogLevel           string        `env:"FLCLIENT_LOG_LEVEL"           envDefault:"info"`
	InstanceID         string        `env:"FLCLIENT_INSTANCE_ID"`
	ClientID           string        `env:"FLCLIENT_CLIENT_ID"`
	ConfigPath         string        `env:"FLCLIENT_CONFIG"              envDefault:"config.toml"`
	RoundsDir          string        `env:"FLCLIENT_ROUNDS_DIR"          envDefault:"rounds"`
	MQTTAddress        string        `env:"FLCLIENT_MQTT_ADDRESS"        envDefault:"tcp://localhost:1883"`
	MQTTQoS            uint8         `env:"FLCLIENT_MQTT_QOS"            envDefault:"2"`
	MQTTTimeout        time.Duration `env:"FLCLIENT_MQTT_TIMEOUT"        envDefault:"30s"`
	MQTTUsername       string        `env:"FLCLIENT_MQTT_USERNAME"`
	MQTTPassword       string        `env:"FLCLIENT_MQTT_PASSWORD"`
	BaseTopic          string        `env:"FLCLIENT_BASE_TOPIC"          envDefault:"flclient"`
	CoordinatorURL     string        `env:"FLCLIENT_COORDINATOR_URL"`
	CoordinatorTimeout time.Duration `env:"FLCLIENT_COORDINATOR_TIMEOUT" envDefault:"30s"`
	LivelinessInterval time.Duration `env:"FLCLIENT_LIVELINESS_INTERVAL" envDefault:"10s"`
	OTELURL            url.URL       `env:"FLCLIENT_OTEL_URL"`
	TraceRatio         float64       `env:"FLCLIENT_TRACE_RATIO"         envDefault:"0"`
	Server             server.Config   `envPrefix:"FLCLIENT_HTTP_"`
	Registry           registry.Config `envPrefix:"FLCLIENT_REGISTRY_"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = namegenerator.NewGenerator().Generate()
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = defHTTPPort
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	if err := start(ctx, cancel, g, cfg, logger); err != nil {
		logger.Error(fmt.Sprintf("failed to start %s service", svcName), slog.Any("error", err))
		cancel()

		return
	}

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
