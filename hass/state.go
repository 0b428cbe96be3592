package hass

// StateClass describes how Home Assistant should compute long-term statistics for a sensor.
type StateClass string

const (
	StateClassNone StateClass = ""

	// StateClassMeasurement indicates the state represents a measurement in present time, such as a temperature or a
	// fan speed. Home Assistant keeps hourly min, max and mean statistics for it.
	StateClassMeasurement StateClass = "measurement"

	// StateClassTotal indicates the state represents a total amount that can both increase and decrease.
	StateClassTotal StateClass = "total"

	// StateClassTotalIncreasing indicates the state represents a monotonically increasing total which periodically
	// restarts counting from 0, such as machine hours.
	StateClassTotalIncreasing StateClass = "total_increasing"
)
