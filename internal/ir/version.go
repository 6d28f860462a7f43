package ir

const (
	// IRVersion is the record schema version stamped on every call.
	IRVersion = "1"

	// EngineVersion is the holopos conductor version.
	EngineVersion = "0.1.0"
)
