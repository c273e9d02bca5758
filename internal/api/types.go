package api

import (
	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/lattice"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/sweep"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e APIError) Error() string {
	return e.Message
}

// Error types
const (
	// Input validation errors
	ErrTypeInvalidJSON   = "invalid_json"
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"

	// Lookup errors
	ErrTypeWalkNotFound = "walk_not_found"
	ErrTypeRunNotFound  = "run_not_found"

	// Sampling errors
	ErrTypeSampling = "sampling_error"

	// Auth errors
	ErrTypeUnauthorized = "unauthorized"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for logging.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategorySampling   ErrorCategory = "sampling"
	CategoryAuth       ErrorCategory = "auth"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type.
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidJSON, ErrTypeInvalidParams, ErrTypeValidation:
		return CategoryValidation
	case ErrTypeWalkNotFound, ErrTypeRunNotFound:
		return CategoryNotFound
	case ErrTypeSampling:
		return CategorySampling
	case ErrTypeUnauthorized:
		return CategoryAuth
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains build information.
type VersionInfo struct {
	Version       string `json:"version"`
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// WalksResponse lists the registered walks.
type WalksResponse struct {
	Walks         []walks.WalkSpec `json:"walks"`
	EngineVersion string           `json:"engine_version"`
}

// EstimateRequest asks for one walk's mean metric.
type EstimateRequest struct {
	Walk    string       `json:"walk"`
	Steps   int          `json:"steps"`
	Samples int          `json:"samples"`
	Seeds   engine.Seeds `json:"seeds"`
}

// EstimateResponse wraps a sampling estimate.
type EstimateResponse struct {
	*sampling.Estimate
	ServerSeedHash string `json:"server_seed_hash"`
}

// SweepRequest asks for a full sweep. Steps wins over Expression, which
// wins over Sweep; with none of them the default sweep runs.
type SweepRequest struct {
	Samples    int               `json:"samples"`
	Steps      []int             `json:"steps,omitempty"`
	Expression string            `json:"expression,omitempty"`
	Sweep      *sweep.Definition `json:"sweep,omitempty"`
	Seeds      engine.Seeds      `json:"seeds"`
	Save       bool              `json:"save"`
}

// SweepResponse wraps a sweep result.
type SweepResponse struct {
	*sampling.SweepResult
	ServerSeedHash string `json:"server_seed_hash"`
	RunID          string `json:"run_id,omitempty"`
}

// TraceRequest replays one trial on the verifiable HMAC stream.
type TraceRequest struct {
	Walk  string       `json:"walk"`
	Steps int          `json:"steps"`
	Seeds engine.Seeds `json:"seeds"`
	Nonce uint64       `json:"nonce"`
}

// TraceResponse is the recorded path of one trial.
type TraceResponse struct {
	Walk          string             `json:"walk"`
	Nonce         uint64             `json:"nonce"`
	Steps         int                `json:"steps"`
	Metric        float64            `json:"metric"`
	Trapped       bool               `json:"trapped,omitempty"`
	End           lattice.Vec[int]   `json:"end"`
	Directions    []string           `json:"directions"`
	Positions     []lattice.Vec[int] `json:"positions"`
	BytesUsed     uint64             `json:"bytes_used"`
	EngineVersion string             `json:"engine_version"`
	Echo          TraceRequest       `json:"echo"`
}
