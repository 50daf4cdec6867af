// Command sentinel scores documents for machine-generated text with a local
// classifier service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"aigc_sentinel/internal/aidetect"
	"aigc_sentinel/internal/api"
	"aigc_sentinel/internal/classifier"
	"aigc_sentinel/internal/config"
	"aigc_sentinel/internal/db"
	"aigc_sentinel/internal/ingest"
	"aigc_sentinel/internal/logarchive"
	"aigc_sentinel/internal/pipeline"
	"aigc_sentinel/internal/workspace"
)

const version = "0.4.0"

type Globals struct {
	Config    string `name:"config" short:"c" help:"Config file (defaults to the workspace config)" type:"path"`
	Workspace string `name:"workspace" help:"Workspace directory (defaults to ~/AIGCSentinel)" type:"path"`
}

// CLI defines the command-line interface for sentinel.
var CLI struct {
	Globals

	Score      ScoreCmd      `cmd:"" help:"Score documents for machine-generated text"`
	Serve      ServeCmd      `cmd:"" help:"Start the scoring HTTP service"`
	CheckModel CheckModelCmd `cmd:"" name:"check-model" help:"Verify a local model directory"`
	Cache      CacheGroup    `cmd:"" help:"Classifier cache maintenance"`
	Logs       LogsGroup     `cmd:"" help:"Session log operations"`
	Version    VersionCmd    `cmd:"" help:"Print version information"`
}

type CacheGroup struct {
	Purge CachePurgeCmd `cmd:"" help:"Drop cached probabilities of the configured model"`
}

type LogsGroup struct {
	Export LogsExportCmd `cmd:"" help:"Bundle session logs into a zip file"`
}

// app is the wiring shared by every command that touches the workspace.
type app struct {
	cfg     config.Config
	ws      workspace.Paths
	logger  *slog.Logger
	archive *logarchive.Archive
	store   *db.Store
}

func setup(g *Globals) (*app, error) {
	var ws workspace.Paths
	var err error
	if g.Workspace != "" {
		ws, err = workspace.EnsureAt(g.Workspace)
	} else {
		ws, err = workspace.EnsureDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("workspace initialization failed: %w", err)
	}

	cfgPath := g.Config
	if cfgPath == "" {
		cfgPath = ws.ConfigFile
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfg.CachePath == "" {
		cfg.CachePath = ws.CacheDB
	}

	archive, err := logarchive.Open(ws.LogsDir)
	if err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(io.MultiWriter(os.Stderr, archive), &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger := slog.New(handler)
	logger.Info("workspace ready", "stage", "BOOT", "root", ws.Root, "config", cfgPath)
	return &app{cfg: cfg, ws: ws, logger: logger, archive: archive}, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.archive.Close()
}

// classifier builds the HTTP classifier, wrapped in the sqlite cache when
// enabled. A cache that cannot be opened is skipped with a warning.
func (a *app) classifier() aidetect.Classifier {
	c := classifier.NewHTTP(a.cfg.Classifier(), nil, a.logger)
	if !a.cfg.CacheEnabled {
		return c
	}
	if a.store == nil {
		store, err := db.OpenStore(a.cfg.CachePath)
		if err != nil {
			a.logger.Warn("classifier cache unavailable", "stage", "BOOT", "path", a.cfg.CachePath, "error", err)
			return c
		}
		a.store = store
	}
	return classifier.NewCached(c, a.store, c.ModelKey(), c.Temperature(), a.logger)
}

func (a *app) engine() (*aidetect.Engine, error) {
	return aidetect.NewEngine(a.cfg.Engine(), a.logger)
}

type ScoreCmd struct {
	Paths []string `arg:"" help:"Files to score (.txt, .docx, .pdf), or - for stdin"`
	JSON  bool     `name:"json" help:"Print results as JSON"`
}

func (c *ScoreCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, a, os.Stdout, os.Stderr)
}

func (c *ScoreCmd) run(ctx context.Context, a *app, stdout, stderr io.Writer) error {
	docs := make([]pipeline.Document, 0, len(c.Paths))
	for _, p := range c.Paths {
		parsed, err := readInput(p)
		if err != nil {
			return err
		}
		docs = append(docs, pipeline.Document{Name: p, Text: parsed.Text})
	}

	engine, err := a.engine()
	if err != nil {
		return err
	}
	clf := a.classifier()

	if len(docs) == 1 {
		run, err := aidetect.NewWorker(engine, clf).Start(ctx, docs[0].Text)
		if err != nil {
			return err
		}
		for ev := range run.Events() {
			if ev.Kind == aidetect.EventProgress {
				fmt.Fprintf(stderr, "%s %d%%\n", ev.State, ev.Percent)
			}
		}
		res, err := run.Wait()
		if err != nil {
			return err
		}
		return c.print(stdout, []pipeline.Outcome{{Name: docs[0].Name, Result: res}})
	}

	outcomes := pipeline.ScoreDocuments(ctx, engine, clf, docs, a.cfg.Workers)
	if err := c.print(stdout, outcomes); err != nil {
		return err
	}
	if failed := pipeline.Failed(outcomes); len(failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(failed), len(outcomes))
	}
	return nil
}

type jsonOutcome struct {
	Name   string           `json:"name"`
	Result *aidetect.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func (c *ScoreCmd) print(w io.Writer, outcomes []pipeline.Outcome) error {
	if c.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(outcomes) == 1 && outcomes[0].Err == nil {
			return enc.Encode(outcomes[0].Result)
		}
		out := make([]jsonOutcome, 0, len(outcomes))
		for _, o := range outcomes {
			j := jsonOutcome{Name: o.Name}
			if o.Err != nil {
				j.Error = o.Err.Error()
			} else {
				res := o.Result
				j.Result = &res
			}
			out = append(out, j)
		}
		return enc.Encode(out)
	}

	for _, o := range outcomes {
		fmt.Fprintf(w, "== %s\n", o.Name)
		if o.Err != nil {
			fmt.Fprintf(w, "error: %v\n", o.Err)
			continue
		}
		for _, p := range o.Result.Paragraphs {
			status := string(p.Band)
			if p.IsIgnored {
				status = "ignored"
			}
			fmt.Fprintf(w, "[%d] %6.2f%% %-7s %s\n", p.Index, p.AIScore, status, preview(p.Content, 40))
		}
		if o.Result.Dropped > 0 {
			fmt.Fprintf(w, "dropped: %d\n", o.Result.Dropped)
		}
		fmt.Fprintf(w, "total AI rate: %.2f%%\n", o.Result.TotalAIRate)
	}
	return nil
}

func readInput(path string) (*ingest.Parsed, error) {
	if path == "-" {
		return ingest.ParseReader(os.Stdin)
	}
	return ingest.ParseFile(path)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

type ServeCmd struct {
	Addr string `name:"addr" help:"Listen address (overrides listen_addr)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := a.engine()
	if err != nil {
		return err
	}
	addr := c.Addr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}
	server := api.NewServer(aidetect.NewWorker(engine, a.classifier()), a.logger)
	srv := &http.Server{Addr: addr, Handler: server.NewRouter(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("scoring service listening", "stage", "BOOT", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("shutting down", "stage", "BOOT")
		return srv.Shutdown(shutdownCtx)
	}
}

type CheckModelCmd struct {
	Dir string `arg:"" help:"Model directory" type:"path"`
}

func (c *CheckModelCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *CheckModelCmd) run(w io.Writer) error {
	m, err := classifier.CheckModelDir(c.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "model: %s\nweights: %s\n", filepath.Clean(m.Path), m.Weights)
	if !m.HasVocab {
		fmt.Fprintln(w, "vocab.txt: missing (tokenizer must come from another file)")
	}
	return nil
}

type CachePurgeCmd struct{}

func (c *CachePurgeCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := db.OpenStore(a.cfg.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()
	model := classifier.NewHTTP(a.cfg.Classifier(), nil, a.logger).ModelKey()
	n, err := store.PurgeModel(model)
	if err != nil {
		return err
	}
	fmt.Printf("purged %d cached probabilities for %s\n", n, model)
	return nil
}

type LogsExportCmd struct {
	Dest string `arg:"" help:"Destination zip file" type:"path"`
}

func (c *LogsExportCmd) Run(g *Globals) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()
	if !strings.HasSuffix(strings.ToLower(c.Dest), ".zip") {
		c.Dest += ".zip"
	}
	if err := a.archive.Export(c.Dest); err != nil {
		return err
	}
	fmt.Printf("logs exported to %s\n", c.Dest)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("sentinel version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sentinel"),
		kong.Description("AIGC Sentinel - paragraph-level machine-generated text scoring"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
