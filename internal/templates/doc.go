// Package templates holds module templates: parameterized bundles of
// calculations the expander stamps into a recipe per instance.
//
// A template declares its inputs (with optional defaults), its outputs
// (named formulas with placeholders), and nothing else; allocation and
// placeholder substitution belong to the expander. Built-ins are
// registered in Go, and user templates load from HCL manifest files so
// a model can ship its own library next to its inputs.
package templates
