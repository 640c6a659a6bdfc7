package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	ggbexport "github.com/alnah/go-ggbexport"
	"github.com/alnah/go-ggbexport/internal/config"
	"github.com/alnah/go-ggbexport/internal/fileutil"
)

// Sentinel errors for CLI operations.
var (
	ErrUsage        = errors.New("invalid usage")
	ErrInvalidInput = errors.New("input is not a GeoGebra document")
	ErrReadInput    = errors.New("failed to read input")
	ErrWriteOutput  = errors.New("failed to write output")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// stdio marks stdin as input or stdout as output.
const stdio = "-"

// zipMagic starts every .ggb file (a zip archive).
var zipMagic = []byte("PK\x03\x04")

func usageError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}

func errUnexpectedArgs(args []string) error {
	return fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))
}

// renderJob is one document to render.
type renderJob struct {
	Input  string // file path or "-"
	Output string // file path or "-"
}

// renderResult holds the outcome of a single render.
type renderResult struct {
	Input    string
	Output   string
	Err      error
	Duration time.Duration
}

// runRender renders every input with a shared session pool.
func runRender(ctx context.Context, args []string, env *Environment) error {
	flags, inputs, err := parseRenderFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		printRenderUsage(env.Stdout)
		return nil
	}
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(flags.common.config)
	if err != nil {
		return err
	}
	mergeCommonFlags(&flags.common, cfg)
	mergeEngineFlags(&flags.engine, cfg)
	mergeRenderFlags(flags, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	env.Config = cfg

	logger, err := cfg.Log.NewLogger(env.Stderr)
	if err != nil {
		return err
	}

	format := ggbexport.RequestFormat(cfg.Export.Format)
	if len(inputs) == 0 {
		inputs = []string{stdio}
	}
	jobs, err := planJobs(inputs, flags.output, format)
	if err != nil {
		return err
	}

	backend := env.NewBackend(cfg, logger)
	defer func() { _ = backend.Close() }()

	tmpl := ggbexport.Request{
		Format:   string(format),
		Commands: flags.commands,
		Width:    cfg.Export.Width,
		Height:   cfg.Export.Height,
	}
	results := renderBatch(ctx, backend, jobs, tmpl, env)
	return reportResults(results, flags.common.quiet, flags.common.verbose, env)
}

// mergeRenderFlags applies render flags to cfg (CLI wins).
func mergeRenderFlags(f *renderFlags, cfg *config.Config) {
	if f.format != "" {
		cfg.Export.Format = f.format
	}
	if f.width != 0 {
		cfg.Export.Width = f.width
	}
	if f.height != 0 {
		cfg.Export.Height = f.height
	}
	if f.dpi != 0 {
		cfg.Export.DPI = f.dpi
	}
}

// planJobs pairs inputs with output paths.
//
// A single input writes to output when given (a directory keeps the input
// name), otherwise next to the input; stdin defaults to stdout.
// Several inputs write next to each input, or into output as a directory.
func planJobs(inputs []string, output string, f ggbexport.Format) ([]renderJob, error) {
	if len(inputs) > 1 {
		for _, in := range inputs {
			if in == stdio {
				return nil, fmt.Errorf("%w: stdin cannot be combined with other inputs", ErrUsage)
			}
		}
		if output == stdio {
			return nil, fmt.Errorf("%w: stdout holds a single export", ErrUsage)
		}
	}

	outputIsDir := len(inputs) > 1 || isDir(output) || strings.HasSuffix(output, string(filepath.Separator))

	jobs := make([]renderJob, 0, len(inputs))
	for _, in := range inputs {
		job := renderJob{Input: in, Output: output}

		switch {
		case in == stdio && (output == "" || output == stdio):
			job.Output = stdio
		case in == stdio && outputIsDir:
			job.Output = filepath.Join(output, "export."+f.Extension())
		case output == "" || outputIsDir:
			name, err := fileutil.ReplaceExt(in, f.Extension())
			if err != nil {
				return nil, err
			}
			if output != "" {
				name = filepath.Join(output, filepath.Base(name))
			}
			job.Output = name
		}

		if job.Input != stdio && filepath.Clean(job.Input) == filepath.Clean(job.Output) {
			return nil, fmt.Errorf("%w: output would overwrite %s", ErrUsage, job.Input)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func isDir(path string) bool {
	if path == "" || path == stdio {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// renderBatch renders jobs concurrently, at most one per pool session.
func renderBatch(ctx context.Context, backend Backend, jobs []renderJob, tmpl ggbexport.Request, env *Environment) []renderResult {
	results := make([]renderResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(backend.Size())
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = renderOne(ctx, backend, job, tmpl, env)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// renderOne reads, renders and writes a single document.
func renderOne(ctx context.Context, backend Backend, job renderJob, tmpl ggbexport.Request, env *Environment) renderResult {
	start := time.Now()
	result := renderResult{Input: job.Input, Output: job.Output}
	finish := func(err error) renderResult {
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	doc, err := readDocument(job.Input, env.Stdin)
	if err != nil {
		return finish(err)
	}

	req := tmpl
	req.Document = doc
	data, _, err := backend.RenderBytes(ctx, req)
	if err != nil {
		return finish(err)
	}

	return finish(writeOutput(job.Output, data, env.Stdout))
}

// readDocument loads a .ggb archive or its base64 text and returns the
// base64 payload the engine expects.
func readDocument(path string, stdin io.Reader) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == stdio {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path) // #nosec G304 -- user-provided input path
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	return encodeDocument(raw)
}

// encodeDocument normalizes raw input: zip bytes are encoded, base64 text
// (optionally as a data URI) is validated and passed through.
func encodeDocument(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, zipMagic) {
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", ggbexport.ErrEmptyDocument
	}
	if strings.HasPrefix(text, "data:") {
		_, payload, ok := strings.Cut(text, ";base64,")
		if !ok {
			return "", fmt.Errorf("%w: data URI is not base64", ErrInvalidInput)
		}
		text = payload
	}
	text = strings.Join(strings.Fields(text), "")

	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !bytes.HasPrefix(decoded, zipMagic) {
		return "", fmt.Errorf("%w: payload is not a zip archive", ErrInvalidInput)
	}
	return text, nil
}

// writeOutput writes data to path, or to stdout for "-".
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == stdio {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("%w: creating output directory: %w", ErrWriteOutput, err)
	}
	if err := fileutil.WriteFileAtomic(path, data, filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// resultSummary holds the count of succeeded and failed renders.
type resultSummary struct {
	Succeeded int
	Failed    int
}

func countResults(results []renderResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	return summary
}

// reportResults prints per-document outcomes. A single failure is returned
// as is; batch failures are summarized and wrap the first error.
func reportResults(results []renderResult, quiet, verbose bool, env *Environment) error {
	summary := countResults(results)

	if len(results) == 1 && results[0].Err != nil {
		return results[0].Err
	}

	var first error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(env.Stderr, "FAILED %s: %v\n", r.Input, r.Err)
			if first == nil {
				first = r.Err
			}
			continue
		}
		if quiet || r.Output == stdio {
			continue
		}
		if verbose {
			fmt.Fprintf(env.Stderr, "%s -> %s (%v)\n", r.Input, r.Output, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(env.Stderr, "Created %s\n", r.Output)
		}
	}

	if !quiet && len(results) > 1 {
		fmt.Fprintf(env.Stderr, "\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
	}

	if first != nil {
		return fmt.Errorf("%d of %d documents failed: %w", summary.Failed, len(results), first)
	}
	return nil
}
