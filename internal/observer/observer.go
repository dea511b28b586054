package observer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gnemet/DeckForge/internal/analyzer"
	"github.com/gnemet/DeckForge/internal/cloner"
	"github.com/gnemet/DeckForge/internal/config"
	"github.com/gnemet/DeckForge/internal/plan"
	"github.com/gnemet/DeckForge/internal/report"
)

// Recorder keeps the history of processed files.
type Recorder interface {
	// TemplateKnown reports whether a template with checksum is already
	// recorded, pointing the record at path when it is.
	TemplateKnown(path, checksum string) (bool, error)
	RecordTemplate(path, checksum string, a *analyzer.Analysis) error
	RecordGeneration(job, templatePath, outputPath string, r *cloner.Report, runErr error) error
}

const (
	doneDir   = "done"
	failedDir = "failed"
)

type Observer struct {
	cfg         *config.Config
	rec         Recorder
	analyzer    *analyzer.Analyzer
	activeTasks int
	mu          sync.Mutex
	LogChan     chan string
}

// NewObserver returns an observer over the storage directories of cfg.
// rec may be nil when no history is kept.
func NewObserver(cfg *config.Config, rec Recorder, az *analyzer.Analyzer, logChan chan string) *Observer {
	return &Observer{
		cfg:      cfg,
		rec:      rec,
		analyzer: az,
		LogChan:  logChan,
	}
}

func (o *Observer) log(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	log.Println(msg)
	if o.LogChan != nil {
		select {
		case o.LogChan <- msg:
		default:
		}
	}
}

func (o *Observer) incrementTask() {
	o.mu.Lock()
	o.activeTasks++
	o.mu.Unlock()
}

func (o *Observer) decrementTask() {
	o.mu.Lock()
	o.activeTasks--
	o.mu.Unlock()
}

func (o *Observer) IsProcessing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.activeTasks > 0
}

func (o *Observer) storage() config.StorageConfig {
	return o.cfg.Application.Storage
}

// Prepare creates every storage directory.
func (o *Observer) Prepare() error {
	st := o.storage()
	if st.Stage == "" || st.Jobs == "" {
		return fmt.Errorf("stage and jobs storage directories must be configured")
	}
	dirs := []string{
		st.Stage, st.Template, st.Analysis, st.Jobs, st.Output,
		filepath.Join(st.Jobs, doneDir), filepath.Join(st.Jobs, failedDir),
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return nil
}

// Start processes what is already waiting, then watches the stage and jobs
// directories until ctx is done.
func (o *Observer) Start(ctx context.Context) error {
	if err := o.Prepare(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	st := o.storage()
	for _, dir := range []string{st.Stage, st.Jobs} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	o.log("Background observer started, watching: %s, %s", st.Stage, st.Jobs)

	o.Scan()

	delay := o.cfg.Application.Debounce
	if delay <= 0 {
		delay = 2 * time.Second
	}

	deb := newDebouncer(ctx, delay)
	defer deb.stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if o.kindOf(event.Name) == "" {
				continue
			}
			// Wait until the file has stopped changing.
			if deb.touch(event.Name) {
				o.log("Detected change in: %s", event.Name)
			}
		case f := <-deb.ready:
			if !deb.accept(f) {
				continue
			}
			if _, err := os.Stat(f.path); err != nil {
				continue
			}
			o.process(f.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.log("Watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// Scan processes every template in the stage directory and every job in the
// jobs directory, templates first.
func (o *Observer) Scan() {
	st := o.storage()
	for _, dir := range []string{st.Stage, st.Jobs} {
		files, err := os.ReadDir(dir)
		if err != nil {
			o.log("Failed to scan directory: %v", err)
			continue
		}
		for _, f := range files {
			path := filepath.Join(dir, f.Name())
			if !f.IsDir() && o.kindOf(path) != "" {
				o.process(path)
			}
		}
	}
}

// kindOf tells what a file in a watched directory is: "template", "job" or "".
func (o *Observer) kindOf(path string) string {
	dir := filepath.Clean(filepath.Dir(path))
	ext := strings.ToLower(filepath.Ext(path))
	st := o.storage()
	switch {
	case dir == filepath.Clean(st.Stage) && ext == ".pptx":
		return "template"
	case dir == filepath.Clean(st.Jobs) && (ext == ".json" || ext == ".yaml" || ext == ".yml"):
		return "job"
	}
	return ""
}

func (o *Observer) process(path string) {
	switch o.kindOf(path) {
	case "template":
		o.ProcessTemplate(path)
	case "job":
		o.ProcessJob(path)
	}
}

// ProcessTemplate analyzes a staged template, writes its analysis report and
// moves it into the template directory.
func (o *Observer) ProcessTemplate(path string) error {
	o.incrementTask()
	defer o.decrementTask()

	filename := filepath.Base(path)
	o.log("Processing template: %s", filename)

	a, err := o.analyzer.Analyze(path)
	if err != nil {
		o.log("Failed to analyze %s: %v", filename, err)
		return err
	}

	st := o.storage()
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if st.Analysis != "" {
		out := filepath.Join(st.Analysis, stem+".analysis.json")
		if err := report.WriteJSON(out, a); err != nil {
			o.log("Failed to write analysis of %s: %v", filename, err)
			return err
		}
	}

	dest := path
	if st.Template != "" {
		dest = filepath.Join(st.Template, filename)
	}

	if o.rec != nil {
		o.record(filename, path, dest, a)
	}

	o.log("Successfully analyzed: %s (%d slides, %s)", filename, a.SlideCount, typeCounts(a))
	if dest != path {
		if err := os.Rename(path, dest); err != nil {
			o.log("Failed to move %s to template folder: %v", filename, err)
			return err
		}
		o.log("Moved %s to %s", filename, dest)
	}
	return nil
}

// ProcessJob builds the deck a job file asks for and files the job under
// done or failed. Relative template paths resolve against the template
// directory, relative outputs against the output directory.
func (o *Observer) ProcessJob(path string) error {
	o.incrementTask()
	defer o.decrementTask()

	filename := filepath.Base(path)
	o.log("Processing job: %s", filename)

	st := o.storage()
	var tplPath, outPath string
	var rep *cloner.Report

	job, err := plan.LoadJob(path)
	if err == nil {
		tplPath = resolve(st.Template, job.Template)
		outPath = resolve(st.Output, job.Output)
		rep, err = cloner.Create(tplPath, job.Slides, outPath, cloner.Options{Analyzer: o.analyzer})
	}
	if err == nil {
		if werr := report.WriteJSON(outPath+".report.json", rep); werr != nil {
			o.log("Failed to write report of %s: %v", filename, werr)
		}
	}

	if o.rec != nil {
		if rerr := o.rec.RecordGeneration(filename, tplPath, outPath, rep, err); rerr != nil {
			o.log("Failed to record job %s: %v", filename, rerr)
		}
	}

	target := doneDir
	if err != nil {
		target = failedDir
		o.log("Job %s failed: %v", filename, err)
	} else {
		o.log("Job %s created %s (%d slides, %d keys not found)", filename, outPath, rep.SlideCount, rep.MissingKeys())
	}
	if merr := os.Rename(path, filepath.Join(st.Jobs, target, filename)); merr != nil {
		o.log("Failed to move job %s to %s: %v", filename, target, merr)
	}
	return err
}

func (o *Observer) record(filename, path, dest string, a *analyzer.Analysis) {
	sum, err := checksum(path)
	if err != nil {
		o.log("Failed to read file for checksum %s: %v", filename, err)
		return
	}
	known, err := o.rec.TemplateKnown(dest, sum)
	if err != nil {
		o.log("Failed to look up template %s: %v", filename, err)
		return
	}
	if known {
		o.log("Template %s (checksum: %s) already recorded. Skipping duplicate record.", filename, sum)
		return
	}
	if err := o.rec.RecordTemplate(dest, sum, a); err != nil {
		o.log("Failed to record template %s: %v", filename, err)
	}
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func checksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func typeCounts(a *analyzer.Analysis) string {
	var parts []string
	for _, c := range analyzer.Classifications {
		if n := len(a.SlideTypes[c]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}
	return strings.Join(parts, ", ")
}
