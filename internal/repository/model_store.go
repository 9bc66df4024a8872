package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"PulseCast/internal/domain/models"
	"PulseCast/internal/ml/ensemble"
)

const (
	ensembleFile = "ensemble.json"
	infoFile     = "model_info.json"
)

// FSModelStore persists trained ensembles as JSON artifacts on disk.
// Writes are atomic (temp file + rename) so a crashed training job never
// leaves a half-written model behind.
type FSModelStore struct {
	dir string
}

func NewFSModelStore(dir string) (*FSModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("model store dir: %w", err)
	}
	return &FSModelStore{dir: dir}, nil
}

func (s *FSModelStore) Save(ctx context.Context, ens *ensemble.Ensemble, info *models.ModelInfo) error {
	if err := writeJSON(filepath.Join(s.dir, ensembleFile), ens); err != nil {
		return fmt.Errorf("save ensemble: %w", err)
	}
	if err := writeJSON(filepath.Join(s.dir, infoFile), info); err != nil {
		return fmt.Errorf("save model info: %w", err)
	}
	return nil
}

func (s *FSModelStore) Load(ctx context.Context) (*ensemble.Ensemble, *models.ModelInfo, error) {
	var ens ensemble.Ensemble
	if err := readJSON(filepath.Join(s.dir, ensembleFile), &ens); err != nil {
		return nil, nil, fmt.Errorf("load ensemble: %w", err)
	}
	var info models.ModelInfo
	if err := readJSON(filepath.Join(s.dir, infoFile), &info); err != nil {
		return nil, nil, fmt.Errorf("load model info: %w", err)
	}
	return &ens, &info, nil
}

func (s *FSModelStore) Info(ctx context.Context) (*models.ModelInfo, error) {
	var info models.ModelInfo
	if err := readJSON(filepath.Join(s.dir, infoFile), &info); err != nil {
		return nil, fmt.Errorf("load model info: %w", err)
	}
	return &info, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
