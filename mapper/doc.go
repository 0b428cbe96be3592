// Package mapper translates between register values and MQTT payloads, builds Home Assistant discovery records for
// registers and routes inbound command topics to typed commands. Everything in this package is pure: nothing here
// talks to the device or the broker.
package mapper
