package fl

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	roundFilePrefix = "round_"
	roundFileSuffix = ".json"
	filePermissions = 0o644
)

// PersistentStorage keeps one JSON file per round under roundsDir. A round id
// can hold a fit and an evaluation; they are stored as separate records.
type PersistentStorage struct {
	roundsDir string
	mu        sync.RWMutex
}

func NewPersistentStorage(roundsDir string) (*PersistentStorage, error) {
	if err := os.MkdirAll(roundsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rounds directory: %w", err)
	}

	return &PersistentStorage{roundsDir: roundsDir}, nil
}

func (ps *PersistentStorage) SaveRound(rec RoundRecord) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	name, err := recordName(rec.RoundID, rec.Kind)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}

	if err := os.WriteFile(filepath.Join(ps.roundsDir, name), data, filePermissions); err != nil {
		return fmt.Errorf("failed to write round file: %w", err)
	}

	return nil
}

func (ps *PersistentStorage) LoadRound(roundID string, kind RoundKind) (RoundRecord, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	name, err := recordName(roundID, kind)
	if err != nil {
		return RoundRecord{}, err
	}

	return ps.read(name)
}

// ListRounds returns all records, oldest first.
func (ps *PersistentStorage) ListRounds() ([]RoundRecord, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	entries, err := os.ReadDir(ps.roundsDir)
	if err != nil {
		return nil, err
	}

	records := []RoundRecord{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), roundFilePrefix) || !strings.HasSuffix(entry.Name(), roundFileSuffix) {
			continue
		}
		rec, err := ps.read(entry.Name())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	return records, nil
}

func (ps *PersistentStorage) read(name string) (RoundRecord, error) {
	data, err := os.ReadFile(filepath.Join(ps.roundsDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return RoundRecord{}, ErrRoundNotFound
	}
	if err != nil {
		return RoundRecord{}, fmt.Errorf("failed to read round file: %w", err)
	}

	var rec RoundRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RoundRecord{}, fmt.Errorf("failed to unmarshal round record: %w", err)
	}

	return rec, nil
}

func recordName(roundID string, kind RoundKind) (string, error) {
	id := sanitizeRoundID(roundID)
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidRoundID, roundID)
	}

	switch kind {
	case KindFit, KindEvaluate:
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRoundID, kind)
	}

	return fmt.Sprintf("%s%s_%s%s", roundFilePrefix, id, kind, roundFileSuffix), nil
}

// sanitizeRoundID keeps only characters that are safe in a file name, which
// also rules out path traversal through the round id.
func sanitizeRoundID(roundID string) string {
	var b strings.Builder
	for _, r := range roundID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
