// Package receipt defines the canonical, provider-independent receipt schema
// every retrieval source normalizes into.
package receipt

// StringValue pairs an extracted string with its extraction confidence.
// Confidence is nil when the source had no confidence concept for the field;
// zero is a real score and must never stand in for "no data".
type StringValue struct {
	Value      string   `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// FloatValue pairs an extracted number with its extraction confidence.
type FloatValue struct {
	Value      float64  `json:"value"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func String(v string) *StringValue {
	return &StringValue{Value: v}
}

func Float(v float64) *FloatValue {
	return &FloatValue{Value: v}
}
