// Package registry pulls the initial model from an OCI registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/absmach/flclient/pkg/artifact"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const defaultTag = "latest"

var (
	ErrNoReference = errors.New("model reference is required")
	ErrNoLayers    = errors.New("no valid layers found in manifest")
)

type Config struct {
	// Reference is a repository such as localhost:5000/models/mnist.
	Reference    string `env:"REFERENCE"    envDefault:""`
	Tag          string `env:"TAG"          envDefault:"latest"`
	PlainHTTP    bool   `env:"PLAIN_HTTP"   envDefault:"false"`
	Authenticate bool   `env:"AUTHENTICATE" envDefault:"false"`
	Token        string `env:"PAT"          envDefault:""`
	Username     string `env:"USERNAME"     envDefault:""`
	Password     string `env:"PASSWORD"     envDefault:""`
}

func (c Config) Validate() error {
	if c.Reference == "" {
		return ErrNoReference
	}

	if c.Authenticate {
		hasToken := c.Token != ""
		hasCredentials := c.Username != "" && c.Password != ""

		if !hasToken && !hasCredentials {
			return errors.New("either PAT or username/password must be provided when authentication is enabled")
		}
		if hasToken && c.Username == "" {
			return errors.New("username is required when using PAT authentication")
		}
	}

	return nil
}

// Fetcher streams the model blob stored as the largest layer of a manifest
// into w and returns the number of bytes written.
type Fetcher interface {
	FetchModel(ctx context.Context, w io.Writer) (int64, error)
}

type fetcher struct {
	cfg  Config
	repo *remote.Repository
}

func NewFetcher(cfg Config) (Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Tag == "" {
		cfg.Tag = defaultTag
	}

	repo, err := remote.NewRepository(cfg.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository for %s: %w", cfg.Reference, err)
	}
	repo.PlainHTTP = cfg.PlainHTTP

	if cfg.Authenticate {
		cred := auth.Credential{Username: cfg.Username, Password: cfg.Password}
		if cfg.Password == "" {
			cred = auth.Credential{Username: cfg.Username, AccessToken: cfg.Token}
		}
		repo.Client = &auth.Client{
			Client:     retry.DefaultClient,
			Cache:      auth.NewCache(),
			Credential: auth.StaticCredential(repo.Reference.Registry, cred),
		}
	}

	return &fetcher{cfg: cfg, repo: repo}, nil
}

func (f *fetcher) FetchModel(ctx context.Context, w io.Writer) (int64, error) {
	manifest, err := f.fetchManifest(ctx)
	if err != nil {
		return 0, err
	}

	layer, err := largestLayer(manifest)
	if err != nil {
		return 0, err
	}

	reader, err := f.repo.Fetch(ctx, layer)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch model layer: %w", err)
	}
	defer reader.Close()

	n, err := io.Copy(w, reader)
	if err != nil {
		return n, fmt.Errorf("failed to read model layer: %w", err)
	}

	return n, nil
}

func (f *fetcher) fetchManifest(ctx context.Context) (ocispec.Manifest, error) {
	desc, err := f.repo.Resolve(ctx, f.cfg.Tag)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to resolve manifest for %s:%s: %w", f.cfg.Reference, f.cfg.Tag, err)
	}

	reader, err := f.repo.Fetch(ctx, desc)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	return decodeManifest(data)
}

func decodeManifest(data []byte) (ocispec.Manifest, error) {
	var manifest ocispec.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ocispec.Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return manifest, nil
}

func largestLayer(manifest ocispec.Manifest) (ocispec.Descriptor, error) {
	var largest ocispec.Descriptor
	for _, l := range manifest.Layers {
		if l.Size > largest.Size {
			largest = l
		}
	}

	if largest.Size == 0 {
		return ocispec.Descriptor{}, ErrNoLayers
	}

	return largest, nil
}

// Publisher is the subset of artifact.Publisher used for bootstrapping.
type Publisher interface {
	Path() string
	Publish(ctx context.Context, model artifact.Writer) error
}

// Bootstrap installs the registry model as the canonical model if no model
// exists yet. It reports whether a model was pulled.
func Bootstrap(ctx context.Context, fetcher Fetcher, publisher Publisher, logger *slog.Logger) (bool, error) {
	if _, err := os.Stat(publisher.Path()); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	// Stage the download next to the model so a failed pull leaves no
	// partial model behind.
	tmp, err := os.CreateTemp(filepath.Dir(publisher.Path()), ".pull-*")
	if err != nil {
		return false, fmt.Errorf("failed to stage model download: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := fetcher.FetchModel(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, err
	}

	if err := publisher.Publish(ctx, artifact.File(tmp.Name())); err != nil {
		return false, err
	}

	logger.Info("Pulled initial model from registry", slog.String("path", publisher.Path()), slog.Int64("size", size))

	return true, nil
}
