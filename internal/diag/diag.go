// Package diag carries model-authoring problems through compilation and
// evaluation without aborting them. The shape follows hcl.Diagnostics:
// a slice of severity-tagged records that is itself an error.
package diag

import (
	"fmt"
	"strings"
)

// Severity distinguishes problems that invalidate a result from ones the
// caller may ignore.
type Severity int

const (
	SeverityInvalid Severity = iota
	SeverityError
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "invalid"
	}
}

// Diagnostic is one problem report. Subject names the model element it
// concerns, such as a calculation or a key period.
type Diagnostic struct {
	Severity Severity
	Summary  string
	Detail   string
	Subject  string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	if d.Subject != "" {
		fmt.Fprintf(&b, " [%s]", d.Subject)
	}
	b.WriteString(": ")
	b.WriteString(d.Summary)
	if d.Detail != "" {
		b.WriteString("; ")
		b.WriteString(d.Detail)
	}
	return b.String()
}

// Diagnostics accumulates problem reports across compilation stages.
type Diagnostics []*Diagnostic

// Append adds one diagnostic, tolerating nil.
func (d Diagnostics) Append(diag *Diagnostic) Diagnostics {
	if diag == nil {
		return d
	}
	return append(d, diag)
}

// Extend concatenates another set of diagnostics.
func (d Diagnostics) Extend(more Diagnostics) Diagnostics {
	return append(d, more...)
}

// HasErrors reports whether any diagnostic is error severity.
func (d Diagnostics) HasErrors() bool {
	for _, diag := range d {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Error implements error over the whole set.
func (d Diagnostics) Error() string {
	switch len(d) {
	case 0:
		return "no diagnostics"
	case 1:
		return d[0].Error()
	default:
		return fmt.Sprintf("%s, and %d other diagnostic(s)", d[0].Error(), len(d)-1)
	}
}

// Errorf appends an error-severity diagnostic about subject.
func (d Diagnostics) Errorf(subject, format string, args ...any) Diagnostics {
	return append(d, &Diagnostic{
		Severity: SeverityError,
		Summary:  fmt.Sprintf(format, args...),
		Subject:  subject,
	})
}

// Warnf appends a warning-severity diagnostic about subject.
func (d Diagnostics) Warnf(subject, format string, args ...any) Diagnostics {
	return append(d, &Diagnostic{
		Severity: SeverityWarning,
		Summary:  fmt.Sprintf(format, args...),
		Subject:  subject,
	})
}
