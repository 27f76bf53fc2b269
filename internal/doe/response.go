package doe

import "fmt"

// Criterion declares what "better" means for a response.
type Criterion string

const (
	Maximize Criterion = "maximize"
	Minimize Criterion = "minimize"
	Target   Criterion = "target"
)

// TransformKind is an optional transform applied before model fitting.
type TransformKind string

const (
	TransformNone   TransformKind = ""
	TransformLog    TransformKind = "log"
	TransformBoxCox TransformKind = "box-cox"
)

// Response describes one measured pipeline outcome.
type Response struct {
	Name      string
	Criterion Criterion
	Target    *float64
	LowLimit  *float64
	HighLimit *float64
	Priority  float64 // desirability exponent, default 1
	Transform TransformKind
	Lambda    *float64 // fixed Box-Cox lambda; nil = estimate
}

// HasLimits reports whether any hard limit is configured.
func (r *Response) HasLimits() bool {
	return r.LowLimit != nil || r.HighLimit != nil
}

// Validate checks the response definition. With several responses the
// desirability scalarization needs limits: maximize requires low_limit
// and target, minimize requires high_limit and target, target requires
// both limits.
func (r *Response) Validate(multi bool) error {
	if r.Name == "" {
		return fmt.Errorf("response name cannot be empty")
	}
	switch r.Criterion {
	case Maximize, Minimize, Target:
	default:
		return fmt.Errorf("response %s: unsupported criterion %q", r.Name, r.Criterion)
	}
	switch r.Transform {
	case TransformNone, TransformLog, TransformBoxCox:
	default:
		return fmt.Errorf("response %s: unsupported transform %q", r.Name, r.Transform)
	}
	if r.Criterion == Target && r.Target == nil && (r.LowLimit == nil || r.HighLimit == nil) {
		return fmt.Errorf("response %s: target criterion requires a target value or both limits", r.Name)
	}
	if !multi {
		return nil
	}
	switch r.Criterion {
	case Maximize:
		if r.LowLimit == nil || r.Target == nil {
			return fmt.Errorf("response %s: maximize needs low_limit and target for multi-response scoring", r.Name)
		}
	case Minimize:
		if r.HighLimit == nil || r.Target == nil {
			return fmt.Errorf("response %s: minimize needs high_limit and target for multi-response scoring", r.Name)
		}
	case Target:
		if r.LowLimit == nil || r.HighLimit == nil {
			return fmt.Errorf("response %s: target needs low_limit and high_limit for multi-response scoring", r.Name)
		}
	}
	return nil
}
