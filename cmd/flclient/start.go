package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/absmach/flclient"
	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/client/api"
	"github.com/absmach/flclient/client/middleware"
	"github.com/absmach/flclient/participant"
	"github.com/absmach/flclient/pkg/artifact"
	"github.com/absmach/flclient/pkg/coordinator"
	"github.com/absmach/flclient/pkg/data"
	"github.com/absmach/flclient/pkg/engine/wasm"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/absmach/flclient/pkg/jaeger"
	"github.com/absmach/flclient/pkg/mqtt"
	"github.com/absmach/flclient/pkg/prometheus"
	"github.com/absmach/flclient/pkg/registry"
	"github.com/absmach/flclient/pkg/server"
	"github.com/absmach/flclient/pkg/tensor"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

func start(ctx context.Context, cancel context.CancelFunc, g *errgroup.Group, cfg envConfig, logger *slog.Logger) error {
	fileCfg, err := flclient.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}
	layers, err := fileCfg.Registry()
	if err != nil {
		return err
	}

	source, err := data.LoadSource(fileCfg.Data.Train, fileCfg.Data.Test)
	if err != nil {
		return errors.Join(errors.New("failed to load data"), err)
	}

	eng, err := wasm.NewFromFile(ctx, fileCfg.Engine.Module, logger)
	if err != nil {
		return errors.Join(errors.New("failed to initialize engine"), err)
	}
	g.Go(func() error {
		<-ctx.Done()

		return eng.Close(context.WithoutCancel(ctx))
	})

	publisher := artifact.NewPublisher(fileCfg.Model.Path, artifact.OSFS{}, logger)

	if cfg.Registry.Reference != "" {
		fetcher, err := registry.NewFetcher(cfg.Registry)
		if err != nil {
			return err
		}
		if _, err := registry.Bootstrap(ctx, fetcher, publisher, logger); err != nil {
			return errors.Join(errors.New("failed to pull initial model"), err)
		}
	}

	rounds, err := fl.NewPersistentStorage(cfg.RoundsDir)
	if err != nil {
		return err
	}

	tp, err := tracerProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	tracer := tp.Tracer(svcName)

	svc := client.NewService(layers, eng, source, publisher, logger, client.WithShapeHook(shapeLogger(logger)))
	svc = middleware.History(rounds, logger, svc)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if cfg.CoordinatorURL != "" {
		p, pubsub, err := newParticipant(cfg, svc, source.Train.Count(), logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			err := p.Run(ctx)

			return errors.Join(err, pubsub.Disconnect(context.WithoutCancel(ctx)))
		})
	} else {
		logger.Info("no coordinator configured, serving the local API only")
	}

	hs := server.NewServer(ctx, cancel, svcName, cfg.Server, api.MakeHandler(svc, rounds, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	return nil
}

func newParticipant(cfg envConfig, svc client.Service, numSamples int, logger *slog.Logger) (*participant.Service, mqtt.PubSub, error) {
	coord, err := coordinator.NewClient(cfg.CoordinatorURL, cfg.CoordinatorTimeout)
	if err != nil {
		return nil, nil, err
	}

	pubsub, err := mqtt.NewPubSub(mqtt.Config{
		Address:   cfg.MQTTAddress,
		QoS:       cfg.MQTTQoS,
		ClientID:  cfg.ClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		BaseTopic: cfg.BaseTopic,
		Timeout:   cfg.MQTTTimeout,
	}, logger)
	if err != nil {
		return nil, nil, errors.Join(errors.New("failed to initialize mqtt client"), err)
	}

	p := participant.NewService(participant.Config{
		ClientID:           cfg.ClientID,
		BaseTopic:          cfg.BaseTopic,
		LivelinessInterval: cfg.LivelinessInterval,
		NumSamples:         numSamples,
	}, svc, coord, pubsub, logger)

	return p, pubsub, nil
}

func tracerProvider(ctx context.Context, cfg envConfig, logger *slog.Logger) (trace.TracerProvider, error) {
	if cfg.OTELURL == (url.URL{}) {
		return noop.NewTracerProvider(), nil
	}

	sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize opentelemetry: %w", err)
	}
	go func() {
		<-ctx.Done()
		if err := sdktp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("error shutting down tracer provider", slog.Any("error", err))
		}
	}()

	return sdktp, nil
}

func shapeLogger(logger *slog.Logger) client.ShapeHook {
	return func(ctx context.Context, stage string, shapes []tensor.ShapeSummary) {
		if !logger.Enabled(ctx, slog.LevelDebug) {
			return
		}
		for _, s := range shapes {
			logger.DebugContext(ctx, "layer shape", slog.String("stage", stage), slog.String("layer", s.Layer), slog.Any("shape", s.Shape))
		}
	}
}
