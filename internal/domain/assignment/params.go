package assignment

// Default values for assignment parameters.
const (
	DefaultMaxActiveTasks           = 5
	DefaultMinRejectionReasonLength = 10
)

// Params defines all configurable parameters of the assignment rules
type Params struct {
	// MaxActiveTasks is the ceiling on Assigned plus Accepted tasks per worker.
	MaxActiveTasks int

	// MinRejectionReasonLength is the minimum rune count of a delegation
	// rejection reason.
	MinRejectionReasonLength int
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance
type ParamsConfig struct {
	MaxActiveTasks           int
	MinRejectionReasonLength int
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MaxActiveTasks:           DefaultMaxActiveTasks,
		MinRejectionReasonLength: DefaultMinRejectionReasonLength,
	}
}

// NewParams creates a new Params instance with custom configuration.
// Non-positive values keep the defaults.
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MaxActiveTasks > 0 {
		params.MaxActiveTasks = config.MaxActiveTasks
	}
	if config.MinRejectionReasonLength > 0 {
		params.MinRejectionReasonLength = config.MinRejectionReasonLength
	}

	return params
}

// HasCapacity reports whether a worker holding activeTasks may take one more.
func (p *Params) HasCapacity(activeTasks int) bool {
	return activeTasks < p.MaxActiveTasks
}
