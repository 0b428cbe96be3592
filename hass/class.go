package hass

// DeviceClass tells Home Assistant how to present an entity (icon, unit conversion, graphs). Only the classes used by
// air-handling units are listed here.
//
// See https://www.home-assistant.io/integrations/sensor/#device-class
type DeviceClass string

const (
	DeviceClassNone        DeviceClass = ""
	DeviceClassTemperature DeviceClass = "temperature"
	DeviceClassHumidity    DeviceClass = "humidity"
	DeviceClassEnum        DeviceClass = "enum"
	DeviceClassProblem     DeviceClass = "problem"
	DeviceClassRunning     DeviceClass = "running"
	DeviceClassSwitch      DeviceClass = "switch"
)

// EntityCategory classifies an entity that is not a primary control or sensor of the device.
//
// See https://developers.home-assistant.io/docs/core/entity/#generic-properties
type EntityCategory string

const (
	EntityCategoryNone       EntityCategory = ""
	EntityCategoryConfig     EntityCategory = "config"
	EntityCategoryDiagnostic EntityCategory = "diagnostic"
)

// NumberMode selects how Home Assistant renders a number entity.
type NumberMode string

const (
	NumberModeAuto   NumberMode = "auto"
	NumberModeBox    NumberMode = "box"
	NumberModeSlider NumberMode = "slider"
)
