// Package spec defines the format-agnostic authoring model and its HCL
// loader.
//
// The authoring model is name-keyed and carries no calculation IDs or
// positional prefixes; the compiler assigns those. Keeping the model
// independent of HCL means alternative frontends only need to produce a
// *spec.Model, and every stage behind the compiler stays untouched.
package spec
