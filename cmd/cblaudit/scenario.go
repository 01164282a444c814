package main

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/cblgo"
	"github.com/obinnaokechukwu/cblgo/leakcheck"
	"github.com/obinnaokechukwu/cblgo/native"
)

// ScenarioResult is the outcome of one audited scenario run.
type ScenarioResult struct {
	Backend   string           `json:"backend"`
	Directory string           `json:"directory"`
	Documents int              `json:"documents"`
	Forgotten int              `json:"forgotten"`
	Before    map[string]int64 `json:"before"`
	After     map[string]int64 `json:"after"`
	Leaks     []LeakEntry      `json:"leaks,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
	Error     string           `json:"error,omitempty"`
}

// LeakEntry is one leaked kind in JSON output.
type LeakEntry struct {
	Kind  string `json:"kind"`
	Delta int64  `json:"delta"`
}

// Leaked reports whether the run ended with live objects it created.
func (r *ScenarioResult) Leaked() bool { return len(r.Leaks) > 0 }

func countsMap(c native.Counts) map[string]int64 {
	m := make(map[string]int64, len(c))
	for k, n := range c {
		m[k.String()] = n
	}
	return m
}

// runScenario opens a database, saves the configured number of documents,
// reads each back and releases everything. With forget set, the read-back
// documents are kept alive until the audit ends, so the auditor must report
// them.
func runScenario(lib native.Library, cfg *Config, forget bool, log *zap.Logger) (*ScenarioResult, error) {
	res := &ScenarioResult{
		Backend:   lib.Name(),
		Directory: cfg.Directory,
		Documents: cfg.Scenario.Documents,
	}

	var held []*cblgo.Document
	defer func() {
		for _, d := range held {
			if err := d.Release(); err != nil {
				log.Warn("release held document", zap.Error(err))
			}
		}
	}()

	a := leakcheck.New(lib, cfg.auditOptions(log)...)
	before, err := a.Begin()
	if err != nil {
		return nil, err
	}
	res.Before = countsMap(before.Counts)
	start := time.Now()

	unitErr := func() error {
		db, err := cblgo.OpenDatabase("cblaudit", cblgo.WithDirectory(cfg.Directory))
		if err != nil {
			return err
		}
		defer db.Release()

		for i := 0; i < cfg.Scenario.Documents; i++ {
			id := fmt.Sprintf("doc%d", i+1)
			doc, err := cblgo.NewDocument(id)
			if err != nil {
				return err
			}
			err = doc.SetProperties(map[string]any{"n": i + 1})
			if err == nil {
				err = db.SaveDocument(doc, cblgo.LastWriteWins)
			}
			if rerr := doc.Release(); err == nil {
				err = rerr
			}
			if err != nil {
				return fmt.Errorf("save %s: %w", id, err)
			}

			got, err := db.GetDocument(id)
			if err != nil {
				return fmt.Errorf("read %s: %w", id, err)
			}
			if forget {
				held = append(held, got)
				continue
			}
			if err := got.Release(); err != nil {
				return err
			}
		}
		return nil
	}()
	res.Forgotten = len(held)

	delta, leakErr := a.End(before)
	res.Duration = time.Since(start)
	res.After = countsMap(lib.InstanceCounts())
	for _, l := range delta.Leaks() {
		res.Leaks = append(res.Leaks, LeakEntry{Kind: l.Kind.String(), Delta: l.Delta})
	}

	err = errors.Join(unitErr, leakErr)
	if err != nil {
		res.Error = err.Error()
	}
	log.Debug("scenario finished",
		zap.String("backend", res.Backend),
		zap.Int("documents", res.Documents),
		zap.Stringer("delta", delta),
		zap.Duration("took", res.Duration))
	return res, err
}
