package discovery

// Generic Sensor Constants
const (
	FieldExpireMeasurementsAfter   = "exp_aft"
	FieldForceUpdate               = "frc_upd"
	FieldOptions                   = "ops"
	FieldSuggestedDisplayPrecision = "sug_dsp_prc"
	FieldStateClass                = "stat_cla"
	FieldUnitOfMeasurement         = "unit_of_meas"

	FieldOffDelay = "off_dly"
)
