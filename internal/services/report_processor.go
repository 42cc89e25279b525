package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"loans/internal/core"
)

// Summarizer produces a portfolio summary. *LoanService satisfies it.
type Summarizer interface {
	Summary(ctx context.Context) (core.PortfolioSummary, error)
}

// ReportProcessorConfig holds configuration for the report processor
type ReportProcessorConfig struct {
	// Schedule is a cron spec or descriptor such as @hourly (default: @hourly)
	Schedule string

	// RunOnStart produces a report immediately on Start (default: true)
	RunOnStart bool

	// Timeout bounds a single report run (default: 30s)
	Timeout time.Duration
}

// DefaultReportProcessorConfig returns sensible defaults
func DefaultReportProcessorConfig() ReportProcessorConfig {
	return ReportProcessorConfig{
		Schedule:   "@hourly",
		RunOnStart: true,
		Timeout:    30 * time.Second,
	}
}

// ReportProcessor logs a portfolio summary on a cron schedule.
type ReportProcessor struct {
	summarizer Summarizer
	config     ReportProcessorConfig

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	last    core.PortfolioSummary
	runs    int
}

func NewReportProcessor(summarizer Summarizer, config ReportProcessorConfig) *ReportProcessor {
	return &ReportProcessor{
		summarizer: summarizer,
		config:     config,
	}
}

// Start schedules the report. Returns an error if already running or if the
// schedule cannot be parsed.
func (p *ReportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("report processor is already running")
	}

	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	if _, err := c.AddFunc(p.config.Schedule, func() { p.run(ctx) }); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("parse report schedule %q: %w", p.config.Schedule, err)
	}
	p.cron = c
	p.running = true
	p.mu.Unlock()

	if p.config.RunOnStart {
		p.run(ctx)
	}
	c.Start()

	slog.InfoContext(ctx, "Report processor started", "schedule", p.config.Schedule)
	return nil
}

// Stop halts the schedule and waits for a running report to finish.
func (p *ReportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c := p.cron
	p.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Report processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Report processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.cron = nil
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently scheduled
func (p *ReportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// RunOnce produces and logs one report.
func (p *ReportProcessor) RunOnce(ctx context.Context) (core.PortfolioSummary, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	summary, err := p.summarizer.Summary(ctx)
	if err != nil {
		return core.PortfolioSummary{}, fmt.Errorf("build portfolio summary: %w", err)
	}

	p.mu.Lock()
	p.last = summary
	p.runs++
	p.mu.Unlock()

	attrs := []any{
		"total_loans", summary.TotalLoans,
		"total_principal", summary.TotalPrincipal,
	}
	for _, st := range core.Statuses {
		attrs = append(attrs, string(st), summary.ByStatus[st])
	}
	slog.InfoContext(ctx, "Portfolio report", attrs...)

	if overdue := summary.ByStatus[core.StatusDefaulted]; overdue > 0 {
		slog.WarnContext(ctx, "Defaulted loans in portfolio",
			"count", overdue,
			"principal", summary.PrincipalByStatus[core.StatusDefaulted])
	}
	return summary, nil
}

func (p *ReportProcessor) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := p.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Portfolio report failed", "error", err)
	}
}

// Last returns the most recent summary and how many reports have run.
func (p *ReportProcessor) Last() (core.PortfolioSummary, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.runs
}
