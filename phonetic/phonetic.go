// Package phonetic provides the pluggable phonetic encoder used by the alias
// phonetic lookup index.
//
// The store only depends on the Encoder signature (string -> fixed-width
// code); any fuzzystrmatch-class algorithm can be injected. Soundex is the
// built-in default.
package phonetic

// Encoder maps a string to a fixed-width approximate-pronunciation code.
// Implementations must be pure functions, safe for concurrent use.
type Encoder interface {
	Encode(s string) string
	// Name identifies the algorithm for persisted formats.
	Name() string
}

// Default is the encoder used when none is injected.
var Default Encoder = Soundex{}
