package register

import "github.com/nlowe/vents2mqtt/hass"

// Register addresses of the Vents AHU controller.
const (
	AddressPower                 Address = 0x0001
	AddressSpeed                 Address = 0x0002
	AddressBoost                 Address = 0x0006
	AddressMode                  Address = 0x000e
	AddressTargetTemperature     Address = 0x0018
	AddressSupplyOutTemperature  Address = 0x001e
	AddressExhaustInTemperature  Address = 0x001f
	AddressSupplyInTemperature   Address = 0x0021
	AddressExhaustOutTemperature Address = 0x0022
	AddressHumidity              Address = 0x0025
	AddressSupplyFanSpeed1       Address = 0x003a
	AddressExhaustFanSpeed1      Address = 0x003b
	AddressSupplyFanSpeed2       Address = 0x003c
	AddressExhaustFanSpeed2      Address = 0x003d
	AddressSupplyFanSpeed3       Address = 0x003e
	AddressExhaustFanSpeed3      Address = 0x003f
	AddressFan1RPM               Address = 0x004a
	AddressFan2RPM               Address = 0x004b
	AddressWeeklySchedule        Address = 0x0072
	AddressAlarm                 Address = 0x0083
)

const (
	unitCelsius = "°C"
	unitPercent = "%"
	unitRPM     = "rpm"
)

// Vents returns the catalog of registers supported by the Vents AHU controller.
func Vents() *Catalog {
	return MustNew(
		Descriptor{
			Address: AddressPower, Name: "power", Direction: ReadWrite, Kind: Boolean,
			DeviceClass: hass.DeviceClassSwitch, Icon: "mdi:power",
		},
		Descriptor{
			Address: AddressSpeed, Name: "speed", Direction: ReadWrite, Kind: Enumerated,
			Enum: []EnumOption{{Label: "low", Code: 1}, {Label: "medium", Code: 2}, {Label: "high", Code: 3}},
			Icon: "mdi:fan",
		},
		Descriptor{
			Address: AddressMode, Name: "mode", Direction: ReadWrite, Kind: Enumerated,
			Enum: []EnumOption{
				{Label: "fan_only", Code: 0},
				{Label: "heating", Code: 1},
				{Label: "cooling", Code: 2},
				{Label: "auto", Code: 3},
			},
			Icon: "mdi:hvac",
		},
		Descriptor{
			Address: AddressTargetTemperature, Name: "target_temperature", Direction: ReadWrite, Kind: Integer,
			Unit: unitCelsius, Min: Bound(15), Max: Bound(30), DeviceClass: hass.DeviceClassTemperature,
		},
		fanPreset(AddressSupplyFanSpeed1, "supply_fan_speed_1"),
		fanPreset(AddressExhaustFanSpeed1, "exhaust_fan_speed_1"),
		fanPreset(AddressSupplyFanSpeed2, "supply_fan_speed_2"),
		fanPreset(AddressExhaustFanSpeed2, "exhaust_fan_speed_2"),
		fanPreset(AddressSupplyFanSpeed3, "supply_fan_speed_3"),
		fanPreset(AddressExhaustFanSpeed3, "exhaust_fan_speed_3"),
		Descriptor{
			Address: AddressWeeklySchedule, Name: "weekly_schedule", Direction: ReadWrite, Kind: Boolean,
			EntityCategory: hass.EntityCategoryConfig, Icon: "mdi:calendar-clock",
		},
		Descriptor{
			Address: AddressBoost, Name: "boost", Direction: ReadOnly, Kind: Boolean,
			DeviceClass: hass.DeviceClassRunning, Icon: "mdi:fan-plus",
		},
		Descriptor{
			Address: AddressHumidity, Name: "humidity", Direction: ReadOnly, Kind: Integer,
			Unit: unitPercent, DeviceClass: hass.DeviceClassHumidity, StateClass: hass.StateClassMeasurement,
		},
		temperature(AddressSupplyInTemperature, "supply_in_temperature"),
		temperature(AddressSupplyOutTemperature, "supply_out_temperature"),
		temperature(AddressExhaustInTemperature, "exhaust_in_temperature"),
		temperature(AddressExhaustOutTemperature, "exhaust_out_temperature"),
		rpm(AddressFan1RPM, "fan1_speed"),
		rpm(AddressFan2RPM, "fan2_speed"),
		Descriptor{
			Address: AddressAlarm, Name: "alarm", Direction: ReadOnly, Kind: Boolean,
			DeviceClass: hass.DeviceClassProblem, EntityCategory: hass.EntityCategoryDiagnostic,
		},
	)
}

func fanPreset(address Address, name string) Descriptor {
	return Descriptor{
		Address: address, Name: name, Direction: ReadWrite, Kind: Integer,
		Unit: unitPercent, Min: Bound(0), Max: Bound(100),
		EntityCategory: hass.EntityCategoryConfig, Icon: "mdi:fan-speed-1",
	}
}

// Air temperatures are tenths of a degree, two bytes, little-endian. They are signed so outdoor air below freezing
// is reported correctly.
func temperature(address Address, name string) Descriptor {
	return Descriptor{
		Address: address, Name: name, Direction: ReadOnly, Kind: Float,
		Scale: 0.1, Width: 2, ByteOrder: LittleEndian, Signed: true,
		Unit: unitCelsius, DeviceClass: hass.DeviceClassTemperature, StateClass: hass.StateClassMeasurement,
	}
}

func rpm(address Address, name string) Descriptor {
	return Descriptor{
		Address: address, Name: name, Direction: ReadOnly, Kind: Integer,
		Width: 2, ByteOrder: LittleEndian,
		Unit: unitRPM, StateClass: hass.StateClassMeasurement, EntityCategory: hass.EntityCategoryDiagnostic,
		Icon: "mdi:fan",
	}
}
