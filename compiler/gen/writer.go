package gen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/sqlrepo/schema/naming"
)

// Snapshot is the SQL generated for one repository, in method order.
type Snapshot struct {
	Repository string
	Dialect    string
	Methods    []MethodSnapshot
}

// MethodSnapshot is the SQL generated for one method. Methods issuing a
// follow-up statement, or branching between statements, have several.
type MethodSnapshot struct {
	Method string
	Kind   string
	SQL    []string
}

// FileName returns the name of the file the snapshot is written to.
func (s *Snapshot) FileName() string {
	return naming.LowerWords().Convert(s.Repository) + "_" + s.Dialect + ".go"
}

// WriterMetrics tracks generation performance
type WriterMetrics struct {
	FilesGenerated int
	TotalBytes     int64
}

// StatementWriter writes statement snapshots as Go files of string
// constants, one file per repository.
type StatementWriter struct {
	cfg *Config

	mu      sync.Mutex
	metrics WriterMetrics
}

// NewStatementWriter creates a writer for cfg. cfg.Target must be set.
func NewStatementWriter(cfg *Config) (*StatementWriter, error) {
	if cfg == nil || cfg.Target == "" {
		return nil, NewConfigError("Target", nil, "missing target directory in config")
	}
	return &StatementWriter{cfg: cfg}, nil
}

// Metrics returns the generation metrics.
func (w *StatementWriter) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// WriteAll renders, formats and writes all snapshots in parallel.
func (w *StatementWriter) WriteAll(ctx context.Context, snaps ...*Snapshot) error {
	if err := os.MkdirAll(w.cfg.Target, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	if w.cfg.Workers > 0 {
		eg.SetLimit(w.cfg.Workers)
	}
	for _, s := range snaps {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeFile(s)
			}
		})
	}
	return eg.Wait()
}

func (w *StatementWriter) writeFile(s *Snapshot) error {
	var buf bytes.Buffer
	if err := WriteStatements(&buf, w.cfg, s); err != nil {
		return NewGenerationError(s.Repository, "", "render statements", err)
	}
	fullPath := filepath.Join(w.cfg.Target, s.FileName())
	formatted, err := imports.Process(fullPath, buf.Bytes(), nil)
	if err != nil {
		// Keep the unformatted output around for debugging.
		debugPath := fullPath + ".error"
		_ = os.WriteFile(debugPath, buf.Bytes(), 0o644)
		return fmt.Errorf("format %s: %w (unformatted written to %s)", s.FileName(), err, debugPath)
	}
	if err := os.WriteFile(fullPath, formatted, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.FileName(), err)
	}
	w.mu.Lock()
	w.metrics.FilesGenerated++
	w.metrics.TotalBytes += int64(len(formatted))
	w.mu.Unlock()
	return nil
}

// WriteStatements renders the snapshots as a single Go file declaring one
// string constant per statement, named <Repository><Method>[<n>].
func WriteStatements(out io.Writer, cfg *Config, snaps ...*Snapshot) error {
	f := jen.NewFile(cfg.Package)
	if cfg.Header != "" {
		f.HeaderComment(cfg.Header)
	}
	for _, s := range sorted(snaps) {
		defs := make([]jen.Code, 0, len(s.Methods))
		for _, m := range s.Methods {
			for i, q := range m.SQL {
				name := s.Repository + m.Method
				if len(m.SQL) > 1 {
					name += strconv.Itoa(i + 1)
				}
				defs = append(defs, jen.Comment(m.Method+" ("+m.Kind+")"), jen.Id(name).Op("=").Lit(q))
			}
		}
		f.Commentf("Statements of %s for the %s dialect.", s.Repository, s.Dialect)
		f.Const().Defs(defs...)
		f.Line()
	}
	return f.Render(out)
}

func sorted(snaps []*Snapshot) []*Snapshot {
	out := append([]*Snapshot(nil), snaps...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Repository < out[j].Repository })
	return out
}
