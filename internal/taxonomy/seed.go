package taxonomy

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sitclass/internal/model"
)

// Seed is the YAML layout accepted by LoadSeed:
//
//	codes:
//	  - code: "0"
//	    label: Food and live animals
//	examples:
//	  - text: Almendras
//	    code: "057.7"
type Seed struct {
	Codes    []SeedCode    `yaml:"codes"`
	Examples []SeedExample `yaml:"examples"`
}

// SeedCode is one taxonomy entry in a seed file
type SeedCode struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// SeedExample is one training example in a seed file
type SeedExample struct {
	Text string `yaml:"text"`
	Code string `yaml:"code"`
}

// LoadResult reports how many rows a seed load inserted
type LoadResult struct {
	Codes    int
	Examples int
}

// LoadSeedFile reads a YAML seed from path and loads it
func (s *Store) LoadSeedFile(ctx context.Context, path string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("taxonomy: open seed: %w", err)
	}
	defer func() { _ = f.Close() }()

	return s.LoadSeed(ctx, f)
}

// LoadSeed decodes a YAML seed and inserts it in a single transaction
func (s *Store) LoadSeed(ctx context.Context, r io.Reader) (LoadResult, error) {
	var seed Seed
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return LoadResult{}, fmt.Errorf("taxonomy: decode seed: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LoadResult{}, fmt.Errorf("taxonomy: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res LoadResult
	for _, c := range seed.Codes {
		if strings.TrimSpace(c.Code) == "" {
			continue
		}
		if err := addCode(ctx, tx, model.NewNode(c.Code, c.Label)); err != nil {
			return LoadResult{}, err
		}
		res.Codes++
	}
	for _, ex := range seed.Examples {
		text := strings.TrimSpace(ex.Text)
		if text == "" {
			continue
		}
		if err := addExample(ctx, tx, text, model.NormalizeCode(ex.Code)); err != nil {
			return LoadResult{}, err
		}
		res.Examples++
	}

	if err := tx.Commit(); err != nil {
		return LoadResult{}, fmt.Errorf("taxonomy: commit: %w", err)
	}
	return res, nil
}
