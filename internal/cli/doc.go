// Package cli wires the modelgrid commands: run, validate, refs, and an
// interactive calc REPL. Commands print data on stdout and keep logs and
// diagnostics on stderr, so piped output stays machine-readable.
package cli
