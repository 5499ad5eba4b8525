// Package pdf extracts page-separated text from PDF files.
//
// Extraction shells out to pdftotext (poppler-utils) rather than binding a
// PDF parser. pdftotext emits a form feed after each page, which yields the
// 1-based page numbers chunk provenance requires.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrToolNotFound indicates the pdftotext binary is not installed.
var ErrToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// ErrNotFound indicates the source PDF file does not exist.
var ErrNotFound = errors.New("file not found")

// Page is the text of a single PDF page.
type Page struct {
	Number int // 1-based
	Text   string
}

// CommandRunner executes an external command and returns its stdout.
// Abstracted so tests can substitute a fake pdftotext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrToolNotFound
	}

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w (%s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Extractor converts PDF files into per-page text.
type Extractor struct {
	runner CommandRunner
}

// New creates an Extractor that runs the real pdftotext binary.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an Extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extract returns the text of every page in the PDF at path.
// Returns ErrNotFound if the file does not exist and an error if the
// document yields no text at all.
func (e *Extractor) Extract(ctx context.Context, path string) ([]Page, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}

	pages := splitPages(string(out))
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text content in %s", path)
	}
	return pages, nil
}

// splitPages splits pdftotext output on form feeds into numbered pages.
// pdftotext terminates every page with a form feed, so the final empty
// fragment is dropped. A document whose pages are all blank yields nothing.
func splitPages(out string) []Page {
	parts := strings.Split(out, "\f")
	if n := len(parts); n > 0 && strings.TrimSpace(parts[n-1]) == "" {
		parts = parts[:n-1]
	}

	allBlank := true
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		if strings.TrimSpace(p) != "" {
			allBlank = false
		}
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	if allBlank {
		return nil
	}
	return pages
}
