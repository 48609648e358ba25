package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/forecast-flow/internal/model"
)

// artifactVersion is bumped whenever the envelope layout changes.
const artifactVersion = 1

// artifact is the on-disk envelope holding every series of one trend class.
type artifact struct {
	CreatedAt time.Time       `json:"created_at"`
	Trend     string          `json:"trend"`
	Kind      Kind            `json:"kind"`
	State     json.RawMessage `json:"state"`
	Series    int             `json:"series"`
	Version   int             `json:"version"`
}

// ArtifactStore persists one artifact per trend class under a directory.
type ArtifactStore struct {
	dir string
}

// NewArtifactStore creates the artifact directory if needed.
func NewArtifactStore(dir string) (*ArtifactStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: empty artifact directory", ErrArtifactIO)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %w", ErrArtifactIO, dir, err)
	}
	return &ArtifactStore{dir: dir}, nil
}

// Path returns the artifact file for a trend class.
func (a *ArtifactStore) Path(trend model.TrendClass) string {
	return filepath.Join(a.dir, string(trend)+".json")
}

// Save writes the strategy's state for trend, replacing any previous artifact
// atomically.
func (a *ArtifactStore) Save(trend model.TrendClass, strategy Strategy) error {
	if err := checkTrendLabel(trend); err != nil {
		return err
	}
	state, err := strategy.MarshalState()
	if err != nil {
		return fmt.Errorf("%w: failed to encode %s state: %w", ErrArtifactIO, trend, err)
	}

	data, err := json.MarshalIndent(artifact{
		Version:   artifactVersion,
		Trend:     string(trend),
		Kind:      strategy.Kind(),
		CreatedAt: time.Now().UTC(),
		Series:    len(strategy.Series()),
		State:     state,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode %s artifact: %w", ErrArtifactIO, trend, err)
	}

	tmp, err := os.CreateTemp(a.dir, string(trend)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", ErrArtifactIO, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: failed to write %s: %w", ErrArtifactIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %w", ErrArtifactIO, tmpName, err)
	}
	if err := os.Rename(tmpName, a.Path(trend)); err != nil {
		return fmt.Errorf("%w: failed to replace artifact: %w", ErrArtifactIO, err)
	}

	slog.Debug("Saved artifact", "trend", trend, "kind", strategy.Kind(), "path", a.Path(trend))
	return nil
}

// Load restores the strategy saved for trend. The artifact must have been
// written by the kind the registry currently maps trend to.
func (a *ArtifactStore) Load(trend model.TrendClass, registry *Registry) (Strategy, error) {
	if err := checkTrendLabel(trend); err != nil {
		return nil, err
	}
	kind, err := registry.KindFor(trend)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(a.Path(trend))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s artifact: %w", ErrArtifactIO, trend, err)
	}

	var env artifact
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, trend, err)
	}
	if env.Version != artifactVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d", ErrCorruptArtifact, trend, env.Version, artifactVersion)
	}
	if env.Kind != kind {
		return nil, fmt.Errorf("%w: %s was trained as %s, now mapped to %s", ErrCorruptArtifact, trend, env.Kind, kind)
	}

	strategy, err := registry.New(kind)
	if err != nil {
		return nil, err
	}
	if err := strategy.UnmarshalState(env.State); err != nil {
		return nil, fmt.Errorf("%w: %s state: %w", ErrCorruptArtifact, trend, err)
	}
	return strategy, nil
}

// Exists reports whether an artifact is stored for trend.
func (a *ArtifactStore) Exists(trend model.TrendClass) bool {
	_, err := os.Stat(a.Path(trend))
	return !errors.Is(err, os.ErrNotExist)
}
