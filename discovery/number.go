package discovery

// Constants for the number and select platforms.
const (
	FieldMin  = "min"
	FieldMax  = "max"
	FieldStep = "step"
	FieldMode = "mode"
)
