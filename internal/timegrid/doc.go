// Package timegrid defines the monthly timeline a model evaluates over,
// along with parsing for authoring-level dates ("Jan 2026") and durations
// ("18 months", "8 years") and the Gregorian calendar queries the time
// constants are built from.
package timegrid
