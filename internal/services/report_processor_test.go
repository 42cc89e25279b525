package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"loans/internal/core"
)

type failingSummarizer struct{}

func (failingSummarizer) Summary(context.Context) (core.PortfolioSummary, error) {
	return core.PortfolioSummary{}, errors.New("store unavailable")
}

func TestDefaultReportProcessorConfig(t *testing.T) {
	config := DefaultReportProcessorConfig()

	if config.Schedule != "@hourly" {
		t.Errorf("expected Schedule @hourly, got %q", config.Schedule)
	}
	if !config.RunOnStart {
		t.Error("expected RunOnStart true")
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", config.Timeout)
	}
}

func TestReportProcessor_RunOnce(t *testing.T) {
	svc, _ := seededService()
	processor := NewReportProcessor(svc, DefaultReportProcessorConfig())

	summary, err := processor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}
	if summary.TotalLoans != 4 {
		t.Errorf("expected 4 loans, got %d", summary.TotalLoans)
	}
	if summary.ByStatus[core.StatusDefaulted] != 1 {
		t.Errorf("expected 1 defaulted loan, got %d", summary.ByStatus[core.StatusDefaulted])
	}

	last, runs := processor.Last()
	if runs != 1 || last.TotalLoans != 4 {
		t.Errorf("Last() = %+v, %d", last, runs)
	}
}

func TestReportProcessor_RunOnceError(t *testing.T) {
	processor := NewReportProcessor(failingSummarizer{}, DefaultReportProcessorConfig())

	if _, err := processor.RunOnce(context.Background()); err == nil {
		t.Error("expected error from failing summarizer")
	}
	if _, runs := processor.Last(); runs != 0 {
		t.Errorf("failed run should not be counted, got %d", runs)
	}
}

func TestReportProcessor_StartStop(t *testing.T) {
	svc, _ := seededService()
	processor := NewReportProcessor(svc, DefaultReportProcessorConfig())
	ctx := context.Background()

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !processor.IsRunning() {
		t.Error("processor should be running after Start")
	}
	if _, runs := processor.Last(); runs != 1 {
		t.Errorf("expected report on start, got %d runs", runs)
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

func TestReportProcessor_InvalidSchedule(t *testing.T) {
	config := DefaultReportProcessorConfig()
	config.Schedule = "every now and then"
	processor := NewReportProcessor(failingSummarizer{}, config)

	if err := processor.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after failed Start")
	}
}

func TestReportProcessor_StopNotRunning(t *testing.T) {
	processor := NewReportProcessor(failingSummarizer{}, DefaultReportProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
