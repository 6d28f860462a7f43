// Package zome defines what application code may do inside an instance and
// how the engine finds it.
//
// A zome is a Definition: named function handlers plus per-entry-type
// validators. Handlers receive an API bound to the calling agent and the
// instance's store, and return an IR value or an error. Errors that are not
// already *APIError are reported to callers as Internal.
package zome
