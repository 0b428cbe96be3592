package vents2mqtt

import "net/url"

// Origin provides information about the software providing devices over MQTT to Home Assistant. Home Assistant logs
// the origin when an entity is discovered or updated, which helps when tracking down where a retained discovery
// message came from.
type Origin struct {
	// The name of the application that is the origin of the discovered MQTT item.
	Name string `json:"name"`
	// Software version of the application that supplies the discovered MQTT item.
	SoftwareVersion string `json:"sw,omitempty"`
	// Support URL of the application that supplies the discovered MQTT item.
	SupportURL *url.URL `json:"url,omitempty"`
}

// Version is reported as Origin.SoftwareVersion. It is overwritten at link time for releases.
var Version = "dev"

var (
	supportURL, _ = url.Parse("https://github.com/nlowe/vents2mqtt")

	// DefaultOrigin is used for every Component that does not specify an Origin.
	DefaultOrigin = Origin{
		Name:            "vents2mqtt",
		SoftwareVersion: Version,
		SupportURL:      supportURL,
	}
)
