package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ConversionFailure is returned only when every conversion strategy failed.
// Attempts preserves the per-strategy reasons for the log.
type ConversionFailure struct {
	Doc      DocumentType
	Attempts []StrategyFailure
}

// StrategyFailure records one strategy that could not produce output.
type StrategyFailure struct {
	Strategy string
	Err      error
}

func (e *ConversionFailure) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("fixed-layout conversion of %q failed on every path: %s",
		e.Doc, strings.Join(parts, "; "))
}

// ConversionStrategy is one way to turn a Document into print-ready bytes.
type ConversionStrategy interface {
	Name() string
	Convert(ctx context.Context, doc *Document) ([]byte, error)
}

// Converter tries an ordered list of strategies and returns the first
// success. Failures accumulate instead of branching on exceptions.
type Converter struct {
	Strategies []ConversionStrategy
}

// NewConverter builds the default two-path converter: the external LaTeX
// engine first for typeset fidelity, the in-process maroto renderer as the
// always-available fallback.
func NewConverter(cfg Config) *Converter {
	return &Converter{
		Strategies: []ConversionStrategy{
			&latexEngine{command: cfg.LatexCommand, timeout: cfg.LatexTimeout},
			marotoEngine{},
		},
	}
}

// ToFixedLayout converts a document via the strategy chain. The returned
// trace holds failures of strategies tried before the one that succeeded;
// callers log it once and move on. Only when all strategies fail does the
// error become a ConversionFailure.
func (c *Converter) ToFixedLayout(ctx context.Context, doc *Document) (out []byte, trace []StrategyFailure, err error) {
	for _, s := range c.Strategies {
		b, convErr := s.Convert(ctx, doc)
		if convErr == nil {
			return b, trace, nil
		}
		trace = append(trace, StrategyFailure{Strategy: s.Name(), Err: convErr})
	}
	return nil, trace, &ConversionFailure{Doc: doc.Type, Attempts: trace}
}

// latexEngine shells out to pdflatex (or a configured equivalent). Every
// invocation is time-bounded; a missing binary or a timeout is an ordinary
// strategy failure, triggering fallback.
type latexEngine struct {
	command string
	timeout time.Duration
}

func (e *latexEngine) Name() string { return "latex" }

func (e *latexEngine) Convert(ctx context.Context, doc *Document) ([]byte, error) {
	if _, err := exec.LookPath(e.command); err != nil {
		return nil, fmt.Errorf("%s not available: %w", e.command, err)
	}

	src, err := RenderLaTeX(doc)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "billgen-latex-")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	texPath := filepath.Join(dir, "doc.tex")
	if err := os.WriteFile(texPath, src, 0o600); err != nil {
		return nil, fmt.Errorf("write tex source: %w", err)
	}

	timeout := e.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.command,
		"-interaction=nonstopmode", "-halt-on-error",
		"-output-directory", dir, texPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out after %s", e.command, timeout)
		}
		return nil, fmt.Errorf("%s: %w: %s", e.command, err, tail(string(out), 300))
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "doc.pdf"))
	if err != nil {
		return nil, fmt.Errorf("read engine output: %w", err)
	}
	return pdf, nil
}

// marotoEngine is the in-process fallback. It has no external dependencies
// and is expected to always succeed.
type marotoEngine struct{}

func (marotoEngine) Name() string { return "maroto" }

func (marotoEngine) Convert(_ context.Context, doc *Document) ([]byte, error) {
	return RenderPDF(doc)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
