package ir

// Version constants for persisted documents and the engine.
const (
	// DocumentVersion is the network document schema version.
	DocumentVersion = "1"

	// EngineVersion is the procnet engine version.
	EngineVersion = "0.1.0"
)
