package weaver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is one analysis finding, located by module and member.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Module   string   `json:"module"`
	Member   string   `json:"member"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%s): %s", d.Severity, d.Member, d.Module, d.Message)
}

// Diagnostics accumulates findings across workers. Errors never stop the
// pass; they only mark it failed.
type Diagnostics struct {
	logger *slog.Logger

	mu    sync.Mutex
	items []Diagnostic
}

func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	return &Diagnostics{logger: logger}
}

func (d *Diagnostics) Error(module, member, format string, args ...any) {
	d.add(Diagnostic{Severity: SeverityError, Module: module, Member: member, Message: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) Warning(module, member, format string, args ...any) {
	d.add(Diagnostic{Severity: SeverityWarning, Module: module, Member: member, Message: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) add(diag Diagnostic) {
	if d.logger != nil {
		level := slog.LevelWarn
		if diag.Severity == SeverityError {
			level = slog.LevelError
		}
		d.logger.Log(context.Background(), level, diag.Message, "module", diag.Module, "member", diag.Member)
	}
	d.mu.Lock()
	d.items = append(d.items, diag)
	d.mu.Unlock()
}

// Failed reports whether at least one error was recorded.
func (d *Diagnostics) Failed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range d.items {
		if it.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Items() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.items...)
}

// Count returns the number of errors and warnings.
func (d *Diagnostics) Count() (errs, warns int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range d.items {
		if it.Severity == SeverityError {
			errs++
		} else {
			warns++
		}
	}
	return
}
