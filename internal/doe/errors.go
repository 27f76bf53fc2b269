package doe

import "fmt"

// FactorRangeError reports a factor window that falls outside the
// factor's declared bounds. It is fatal and prevents design construction.
type FactorRangeError struct {
	Factor string
	Low    float64
	High   float64
	Min    float64
	Max    float64
}

func (e *FactorRangeError) Error() string {
	return fmt.Sprintf("factor range error: %s window [%v, %v] outside bounds [%v, %v]",
		e.Factor, e.Low, e.High, e.Min, e.Max)
}

// UnsupportedDesignError reports an unknown design type.
type UnsupportedDesignError struct {
	Type string
}

func (e *UnsupportedDesignError) Error() string {
	return fmt.Sprintf("unsupported design type: %s", e.Type)
}
