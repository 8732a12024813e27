package participant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/coordinator"
	"github.com/absmach/flclient/pkg/engine"
	"github.com/absmach/flclient/pkg/fl"
	pkgmqtt "github.com/absmach/flclient/pkg/mqtt"
)

var (
	RoundStartTopicTemplate = "%s/fl/rounds/start"
	ResultsTopicTemplate    = "%s/fl/clients/results"
)

type Config struct {
	ClientID           string
	BaseTopic          string
	LivelinessInterval time.Duration
	// NumSamples is reported to the coordinator as the weight of this
	// client's update.
	NumSamples int
}

type Service struct {
	cfg         Config
	svc         client.Service
	coordinator coordinator.Client
	pubsub      pkgmqtt.PubSub
	logger      *slog.Logger

	// rounds runs one round at a time, from task fetch to update post, so
	// a queued round cannot train between another round's fit and read.
	rounds sync.Mutex

	mu     sync.Mutex
	active map[string]struct{}
	closed bool
	wg     sync.WaitGroup
}

type roundStart struct {
	RoundID      string   `json:"round_id"`
	ModelURI     string   `json:"model_uri"`
	Participants []string `json:"participants"`
}

func (r roundStart) validate() error {
	if r.RoundID == "" {
		return errors.New("round_id is required")
	}

	return nil
}

func NewService(cfg Config, svc client.Service, coord coordinator.Client, pubsub pkgmqtt.PubSub, logger *slog.Logger) *Service {
	return &Service{
		cfg:         cfg,
		svc:         svc,
		coordinator: coord,
		pubsub:      pubsub,
		logger:      logger,
		active:      make(map[string]struct{}),
	}
}

// Run subscribes to round announcements and blocks until ctx is done and all
// started rounds have finished.
func (p *Service) Run(ctx context.Context) error {
	topic := fmt.Sprintf(RoundStartTopicTemplate, p.cfg.BaseTopic)
	if err := p.pubsub.Subscribe(ctx, topic, p.handleRoundStart(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to round start topic: %w", err)
	}

	if p.cfg.LivelinessInterval > 0 {
		go p.startLivelinessUpdates(ctx)
	}

	p.logger.Info("Participant is running", slog.String("client_id", p.cfg.ClientID), slog.String("topic", topic))
	<-ctx.Done()

	if err := p.pubsub.Unsubscribe(context.WithoutCancel(ctx), topic); err != nil {
		p.logger.Warn("failed to unsubscribe from round start topic", slog.Any("error", err))
	}

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()

	return nil
}

// admit registers a round unless it is already queued or running, or the
// participant is shutting down.
func (p *Service) admit(roundID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	if _, ok := p.active[roundID]; ok {
		return false
	}
	p.active[roundID] = struct{}{}
	p.wg.Add(1)

	return true
}

func (p *Service) done(roundID string) {
	p.mu.Lock()
	delete(p.active, roundID)
	p.mu.Unlock()

	p.wg.Done()
}

func (p *Service) startLivelinessUpdates(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.LivelinessInterval)
	defer ticker.Stop()

	topic := fmt.Sprintf(pkgmqtt.AliveTopicTemplate, p.cfg.BaseTopic)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopping liveliness updates")

			return
		case <-ticker.C:
			payload := map[string]any{
				"status":    "alive",
				"client_id": p.cfg.ClientID,
			}
			if err := p.pubsub.Publish(ctx, topic, payload); err != nil {
				p.logger.Error("failed to publish liveliness message", slog.Any("error", err))

				continue
			}

			p.logger.Debug("Published liveliness message", slog.String("topic", topic))
		}
	}
}

func (p *Service) handleRoundStart(ctx context.Context) pkgmqtt.Handler {
	return func(_ string, msg map[string]any) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		var req roundStart
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		if err := req.validate(); err != nil {
			return err
		}

		if len(req.Participants) > 0 && !slices.Contains(req.Participants, p.cfg.ClientID) {
			p.logger.Debug("Round does not include this client", slog.String("round_id", req.RoundID))

			return nil
		}

		if !p.admit(req.RoundID) {
			p.logger.Debug("Ignoring round start", slog.String("round_id", req.RoundID))

			return nil
		}

		p.logger.Info("Received round start", slog.String("round_id", req.RoundID))

		go func() {
			defer p.done(req.RoundID)
			p.participate(ctx, req)
		}()

		return nil
	}
}

func (p *Service) participate(ctx context.Context, req roundStart) {
	p.rounds.Lock()
	defer p.rounds.Unlock()

	if ctx.Err() != nil {
		p.logger.Info("Skipping queued round on shutdown", slog.String("round_id", req.RoundID))

		return
	}

	err := p.runRound(client.WithRoundID(ctx, req.RoundID), req)

	payload := map[string]any{
		"round_id":  req.RoundID,
		"client_id": p.cfg.ClientID,
		"status":    "completed",
	}
	if err != nil {
		p.logger.Error("Round failed", slog.String("round_id", req.RoundID), slog.Any("error", err))
		payload["status"] = "failed"
		payload["error"] = err.Error()
	}

	topic := fmt.Sprintf(ResultsTopicTemplate, p.cfg.BaseTopic)
	if err := p.pubsub.Publish(ctx, topic, payload); err != nil {
		p.logger.Error("failed to publish round result", slog.String("round_id", req.RoundID), slog.Any("error", err))
	}
}

func (p *Service) runRound(ctx context.Context, req roundStart) error {
	task, err := p.coordinator.GetTask(ctx, req.RoundID, p.cfg.ClientID)
	if err != nil {
		return err
	}

	if n, ok := epochs(task.Hyperparams); ok {
		ctx = client.WithEpochs(ctx, n)
	}

	if task.Parameters != nil {
		if err := p.svc.UpdateParameters(ctx, task.Parameters); err != nil {
			return err
		}
	}

	if err := p.svc.Fit(ctx); err != nil {
		return err
	}

	params, err := p.svc.GetParameters(ctx)
	if err != nil {
		return err
	}

	metrics := map[string]any{}
	if task.Evaluate {
		res, err := p.svc.Evaluate(ctx)
		if err != nil {
			return err
		}
		metrics[engine.MetricLoss] = res.Loss
		metrics["accuracy"] = res.Accuracy
	}

	modelURI := task.ModelRef
	if modelURI == "" {
		modelURI = req.ModelURI
	}

	return p.coordinator.PostUpdate(ctx, fl.Update{
		RoundID:      req.RoundID,
		ClientID:     p.cfg.ClientID,
		BaseModelURI: modelURI,
		NumSamples:   p.cfg.NumSamples,
		Metrics:      metrics,
		Parameters:   params,
		SentAt:       time.Now().UTC(),
	})
}

// epochs reads the "epochs" hyperparameter, which arrives as a JSON number.
func epochs(hyperparams map[string]any) (int, bool) {
	var n float64
	switch v := hyperparams["epochs"].(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint64:
		n = float64(v)
	default:
		return 0, false
	}
	if n < 1 || n != math.Trunc(n) {
		return 0, false
	}

	return int(n), true
}
