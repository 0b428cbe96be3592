// Package platform contains implementations for the Home Assistant MQTT platforms used by the bridge. See the Home
// Assistant docs for a list of platforms: https://www.home-assistant.io/integrations/mqtt.
//
// Each platform implementation satisfies the vents2mqtt.Platform interface. The PlatformName method returns the Home
// Assistant platform name (e.g. Switch's PlatformName method returns the string "switch").
//
// Not all fields for a given platform implementation are required by Home Assistant. Required fields are tagged with
// `vents2mqtt:"required"` and checked when marshaling for discovery.
package platform
