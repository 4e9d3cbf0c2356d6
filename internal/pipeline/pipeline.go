package pipeline

import (
	"context"
	"log/slog"
	"os"

	"github.com/nao1215/sitemirror/internal/assetcache"
	"github.com/nao1215/sitemirror/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
//
// Design decision: We use an interface rather than function types because
// steps carry their dependencies (the asset store, the logger) and the
// Name() method keeps log lines readable.
type Step interface {
	// Do executes the step on page. An error is logged by the pipeline
	// and does not stop the following steps.
	Do(ctx context.Context, page *model.Page) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// AssetStore caches a referenced asset under the output root.
// *assetcache.Cache is the production implementation.
type AssetStore interface {
	// Store returns the cached path relative to the root, or ref
	// unchanged when the asset could not be cached.
	Store(ctx context.Context, ref string, opts ...assetcache.StoreOption) string

	// Root returns the output root.
	Root() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps   []Step
	logger  *slog.Logger
	workDir string
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline and the default steps.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithWorkDir sets the directory relative injected files are read from.
// Defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(p *Pipeline) {
		p.workDir = dir
	}
}

// New creates an empty Pipeline. Steps are added with AddStep.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			p.workDir = wd
		}
	}
	return p
}

// Default creates the Pipeline used for every mirrored page. domain is the
// scheme and host of the starting URL.
func Default(store AssetStore, domain string, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewCleanupStep(p.logger),
		NewMetaStep(p.logger),
		NewBackgroundImageStep(store, p.logger),
		NewImageStep(store, domain, p.logger),
		NewScriptStep(store, p.logger),
		NewStylesheetStep(store, p.logger),
		NewFontEmbedStep(p.logger),
		NewInjectStep(store, p.workDir, p.logger),
	)
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Run executes every step on page in order. It only returns an error when
// ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, page *model.Page) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", page.URL,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", page.URL)
		if err := step.Do(ctx, page); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", page.URL,
				"error", err,
			)
		}
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
