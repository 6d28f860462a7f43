// Package dna loads and validates application bundles.
//
// A bundle names the zomes an instance runs, the entry types each zome
// commits, and the functions each capability exposes. Bundles are JSON
// (dist/bundle.json) or CUE; both are checked against the embedded CUE
// schema before semantic validation.
package dna
