package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

type Template struct {
	ID         int             `json:"id"`
	Filename   string          `json:"filename"`
	Path       string          `json:"path"`
	Checksum   string          `json:"checksum"`
	SlideCount int             `json:"slide_count"`
	Analysis   json.RawMessage `json:"analysis"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Generation is one processed job, successful or not.
type Generation struct {
	ID           int             `json:"id"`
	Job          string          `json:"job"`
	TemplatePath string          `json:"template_path"`
	OutputPath   string          `json:"output_path"`
	SlideCount   int             `json:"slide_count"`
	MissingKeys  int             `json:"missing_keys"`
	Status       string          `json:"status"`
	Error        string          `json:"error"`
	Report       json.RawMessage `json:"report"`
	CreatedAt    time.Time       `json:"created_at"`
}

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

type AIUsage struct {
	ID               int       `json:"id"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Cost             float64   `json:"cost"`
	CreatedAt        time.Time `json:"created_at"`
}

// SaveTemplate stores t, or refreshes the row with the same checksum.
func SaveTemplate(db *sql.DB, t *Template) (int, error) {
	query := `
		INSERT INTO templates (filename, path, checksum, slide_count, analysis)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (checksum) DO UPDATE
		SET filename = EXCLUDED.filename, path = EXCLUDED.path, slide_count = EXCLUDED.slide_count, analysis = EXCLUDED.analysis
		RETURNING id
	`
	var id int
	err := db.QueryRow(query, t.Filename, t.Path, t.Checksum, t.SlideCount, jsonOrEmpty(t.Analysis)).Scan(&id)
	return id, err
}

func GetTemplateByChecksum(db *sql.DB, checksum string) (*Template, error) {
	var t Template
	query := "SELECT id, filename, path, checksum, slide_count, analysis, created_at FROM templates WHERE checksum = $1"
	err := db.QueryRow(query, checksum).Scan(&t.ID, &t.Filename, &t.Path, &t.Checksum, &t.SlideCount, &t.Analysis, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func UpdateTemplatePath(db *sql.DB, id int, path string) error {
	_, err := db.Exec("UPDATE templates SET path = $1 WHERE id = $2", path, id)
	return err
}

func SaveGeneration(db *sql.DB, g *Generation) (int, error) {
	query := `
		INSERT INTO generations (job, template_path, output_path, slide_count, missing_keys, status, error, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int
	err := db.QueryRow(query, g.Job, g.TemplatePath, g.OutputPath, g.SlideCount, g.MissingKeys, g.Status, g.Error, jsonOrEmpty(g.Report)).Scan(&id)
	return id, err
}

// ListGenerations returns the newest generations first. limit <= 0 returns all.
func ListGenerations(db *sql.DB, limit int) ([]Generation, error) {
	query := "SELECT id, job, template_path, output_path, slide_count, missing_keys, status, error, report, created_at FROM generations ORDER BY created_at DESC, id DESC"
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = db.Query(query+" LIMIT $1", limit)
	} else {
		rows, err = db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		var g Generation
		if err := rows.Scan(&g.ID, &g.Job, &g.TemplatePath, &g.OutputPath, &g.SlideCount, &g.MissingKeys, &g.Status, &g.Error, &g.Report, &g.CreatedAt); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

func LogAIUsage(db *sql.DB, u *AIUsage) error {
	query := `
		INSERT INTO ai_usage (provider, model, prompt_tokens, completion_tokens, total_tokens, cost)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Exec(query, u.Provider, u.Model, u.PromptTokens, u.CompletionTokens, u.TotalTokens, u.Cost)
	return err
}

func GetTotalAICost(db *sql.DB) (float64, error) {
	var total float64
	err := db.QueryRow("SELECT COALESCE(SUM(cost), 0) FROM ai_usage").Scan(&total)
	return total, err
}

func jsonOrEmpty(m json.RawMessage) []byte {
	if len(m) == 0 {
		return []byte("{}")
	}
	return m
}
