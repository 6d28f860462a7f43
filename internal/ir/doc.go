// Package ir defines the value model and record types shared by every holopos
// package.
//
// ir imports nothing internal. All content addresses (entries, links, calls,
// bundles) are computed here from canonical JSON so that the store, the engine
// and the harness agree on identity byte for byte.
//
// Constraints:
//   - no float types: fractional numbers are exact decimals (IRDecimal)
//   - JSON tags use snake_case
//   - ordering uses the logical seq, never wall-clock time
package ir
