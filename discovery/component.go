package discovery

// Constants for component (entity) discovery fields.
const (
	FieldAvailabilityTopic   = "avty_t"
	FieldAvailability        = "avty"
	FieldAvailabilityMode    = "avty_mode"
	FieldTopic               = "t"
	FieldPayloadAvailable    = "pl_avail"
	FieldPayloadNotAvailable = "pl_not_avail"
)
