package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gnemet/DeckForge/internal/ai"
	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/cloner"
	"github.com/gnemet/DeckForge/internal/config"
	"github.com/gnemet/DeckForge/internal/database"
	"github.com/gnemet/DeckForge/internal/deckerr"
	"github.com/gnemet/DeckForge/internal/locale"
	"github.com/gnemet/DeckForge/internal/observer"
	"github.com/gnemet/DeckForge/internal/plan"
	"github.com/gnemet/DeckForge/internal/report"
)

const usage = `Usage:
  deckforge analyze <template.pptx> [-o file] [-format text|json|markdown|html]
  deckforge create <template.pptx> <plan.json|plan.yaml> <output.pptx> [-report file.json]
  deckforge draft <template.pptx> -outline file [-o plan.json]
  deckforge watch
  deckforge history [-n 20] [-format text|json]
  deckforge version
`

// errUsage marks command line mistakes.
type errUsage string

func (e errUsage) Error() string { return string(e) }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return deckerr.ExitUsage
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return deckerr.ExitFailure
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "analyze":
		err = analyzeCmd(cfg, rest, stdout)
	case "create":
		err = createCmd(cfg, rest, stdout)
	case "draft":
		err = draftCmd(cfg, rest, stdout)
	case "watch":
		err = watchCmd(cfg)
	case "history":
		err = historyCmd(cfg, rest, stdout)
	case "version":
		fmt.Fprintf(stdout, "%s %s\n", cfg.Application.Name, cfg.Application.Version)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
	default:
		err = errUsage(fmt.Sprintf("unknown command %q", cmd))
	}

	if err == nil {
		return deckerr.ExitOK
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	if _, ok := err.(errUsage); ok {
		fmt.Fprint(stderr, usage)
		return deckerr.ExitUsage
	}
	return deckerr.ExitCode(err)
}

// parse lets flags and positional arguments appear in any order and checks
// the positional count.
func parse(fs *flag.FlagSet, args []string, want int) ([]string, error) {
	fs.SetOutput(io.Discard)
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, errUsage(err.Error())
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
	if len(pos) != want {
		return nil, errUsage(fmt.Sprintf("%s expects %d arguments, got %d", fs.Name(), want, len(pos)))
	}
	return pos, nil
}

func newAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	kw, err := locale.Load(cfg.Classifier.KeywordDir)
	if err != nil {
		return nil, err
	}
	c := analyzer.NewClassifier(kw, cfg.Classifier.DividerMaxElements, cfg.Classifier.NumberMaxDigits)
	return analyzer.New(c), nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".md", ".markdown":
		return "markdown"
	case ".html", ".htm":
		return "html"
	}
	return "text"
}

func analyzeCmd(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	out := fs.String("o", "", "write the report to this file")
	format := fs.String("format", "", "text, json, markdown or html")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if *format == "" {
		*format = "text"
		if *out != "" {
			*format = formatFor(*out)
		}
	}

	az, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	a, err := az.Analyze(pos[0])
	if err != nil {
		return err
	}

	var data []byte
	switch *format {
	case "text":
		data = []byte(report.AnalysisText(a))
	case "json":
		if data, err = report.JSON(a); err != nil {
			return err
		}
	case "markdown":
		data = []byte(report.AnalysisMarkdown(a))
	case "html":
		data = report.AnalysisHTML(a)
	default:
		return errUsage(fmt.Sprintf("unknown format %q", *format))
	}

	if *out == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*out, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}
	fmt.Fprintf(stdout, "Analysis of %s written to %s\n", pos[0], *out)
	return nil
}

func createCmd(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	reportPath := fs.String("report", "", "write the create report as JSON to this file")
	pos, err := parse(fs, args, 3)
	if err != nil {
		return err
	}

	p, err := plan.Load(pos[1])
	if err != nil {
		return err
	}
	az, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	r, err := cloner.Create(pos[0], p, pos[2], cloner.Options{Analyzer: az})
	if err != nil {
		return err
	}

	fmt.Fprint(stdout, report.CreateText(r))
	if *reportPath != "" {
		return report.WriteJSON(*reportPath, r)
	}
	return nil
}

func draftCmd(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("draft", flag.ContinueOnError)
	outlinePath := fs.String("outline", "", "text file with the outline of the deck")
	out := fs.String("o", "", "write the plan to this file")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	if *outlinePath == "" {
		return errUsage("draft needs -outline")
	}
	outline, err := os.ReadFile(*outlinePath)
	if err != nil {
		if os.IsNotExist(err) {
			return deckerr.NotFound(*outlinePath)
		}
		return err
	}

	az, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	a, err := az.Analyze(pos[0])
	if err != nil {
		return err
	}

	client := ai.NewClient(cfg)
	p, usage, err := client.DraftPlan(context.Background(), a, string(outline))
	if err != nil {
		return err
	}
	log.Printf("Drafted %d slides with %s (%d tokens, cost %.6f)", len(p), usage.Model, usage.TotalTokens, usage.Cost)

	if cfg.Database.Enabled {
		if store, err := openStore(cfg); err != nil {
			log.Printf("Usage not recorded: %v", err)
		} else {
			if err := store.RecordAIUsage(usage); err != nil {
				log.Printf("Usage not recorded: %v", err)
			}
			store.DB.Close()
		}
	}

	if *out == "" {
		data, err := report.JSON(p)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
	if err := report.WriteJSON(*out, p); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Plan with %d slides written to %s\n", len(p), *out)
	return nil
}

func openStore(cfg *config.Config) (*database.Store, error) {
	db, err := database.NewConnection(cfg.Database.GetConnectStr())
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return database.NewStore(db), nil
}

func watchCmd(cfg *config.Config) error {
	az, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	var rec observer.Recorder
	if cfg.Database.Enabled {
		store, err := openStore(cfg)
		if err != nil {
			log.Fatalf("Database setup failed: %v", err)
		}
		defer store.DB.Close()
		rec = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observer.NewObserver(cfg, rec, az, nil)
	return obs.Start(ctx)
}

func historyCmd(cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", 20, "number of generations to list, 0 for all")
	format := fs.String("format", "text", "text or json")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return errUsage(fmt.Sprintf("unknown format %q", *format))
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("history needs the database (set database.enabled or DB_ENABLED)")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.DB.Close()

	gens, cost, err := store.History(*limit)
	if err != nil {
		return err
	}
	if *format == "json" {
		data, err := report.JSON(map[string]interface{}{"generations": gens, "ai_cost": cost})
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
	fmt.Fprint(stdout, report.HistoryText(gens, cost))
	return nil
}
