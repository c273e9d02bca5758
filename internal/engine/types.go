package engine

// Seeds identify a reproducible random stream.
type Seeds struct {
	Server string `json:"server" yaml:"server"` // ASCII; used verbatim as the HMAC key
	Client string `json:"client" yaml:"client"`
}

// IsZero reports whether no seed material was supplied.
func (s Seeds) IsZero() bool {
	return s.Server == "" && s.Client == ""
}

// Source is the random stream a single walk draws from. Implementations are
// not safe for concurrent use; every worker owns its own.
type Source interface {
	// Uint64 returns a uniformly distributed 64-bit value.
	Uint64() uint64
	// IntN returns a uniform value in [0, n). It panics if n <= 0.
	IntN(n int) int
}
