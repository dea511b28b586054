package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/gnemet/DeckForge/internal/ai"
	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/cloner"
)

// Store records watch-mode and drafting activity in the history tables.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

// TemplateKnown looks a template up by checksum and moves its record to path
// when the file was found under another name.
func (s *Store) TemplateKnown(path, checksum string) (bool, error) {
	t, err := GetTemplateByChecksum(s.DB, checksum)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if t.Path != path {
		if err := UpdateTemplatePath(s.DB, t.ID, path); err != nil {
			return true, err
		}
	}
	return true, nil
}

// History returns the latest generations, newest first, and the total AI
// cost recorded so far.
func (s *Store) History(limit int) ([]Generation, float64, error) {
	gens, err := ListGenerations(s.DB, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list generations: %w", err)
	}
	cost, err := GetTotalAICost(s.DB)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to sum AI cost: %w", err)
	}
	return gens, cost, nil
}

func (s *Store) RecordTemplate(path, checksum string, a *analyzer.Analysis) error {
	t, err := NewTemplate(path, checksum, a)
	if err != nil {
		return err
	}
	_, err = SaveTemplate(s.DB, t)
	return err
}

func (s *Store) RecordGeneration(job, templatePath, outputPath string, r *cloner.Report, runErr error) error {
	g, err := NewGeneration(job, templatePath, outputPath, r, runErr)
	if err != nil {
		return err
	}
	_, err = SaveGeneration(s.DB, g)
	return err
}

func (s *Store) RecordAIUsage(u ai.Usage) error {
	return LogAIUsage(s.DB, &AIUsage{
		Provider:         u.Provider,
		Model:            u.Model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		Cost:             u.Cost,
	})
}

// NewTemplate builds the row for an analyzed template stored at path.
func NewTemplate(path, checksum string, a *analyzer.Analysis) (*Template, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return &Template{
		Filename:   filepath.Base(path),
		Path:       path,
		Checksum:   checksum,
		SlideCount: a.SlideCount,
		Analysis:   data,
	}, nil
}

// NewGeneration builds the row for a processed job. A nil runErr marks it done.
func NewGeneration(job, templatePath, outputPath string, r *cloner.Report, runErr error) (*Generation, error) {
	g := &Generation{
		Job:          job,
		TemplatePath: templatePath,
		OutputPath:   outputPath,
		Status:       StatusDone,
	}
	if runErr != nil {
		g.Status = StatusFailed
		g.Error = runErr.Error()
	}
	if r != nil {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		g.Report = data
		g.SlideCount = r.SlideCount
		g.MissingKeys = r.MissingKeys()
	}
	return g, nil
}
