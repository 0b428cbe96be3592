package discovery

import (
	"strings"

	"github.com/nlowe/vents2mqtt/mqtt"
)

// Constants for device fields and other fields shared by all platforms
const (
	FieldName          = "name"
	FieldStateTopic    = "stat_t"
	FieldCommandTopic  = "cmd_t"
	FieldValueTemplate = "val_tpl"
	FieldDeviceClass   = "dev_cla"

	FieldDevice          = "dev"
	FieldOrigin          = "o"
	FieldEntityCategory  = "ent_cat"
	FieldIcon            = "ic"
	FieldPlatform        = "p"
	FieldDefaultEntityID = "def_ent_id"
	FieldUniqueID        = "uniq_id"

	FieldPayloadOn  = "pl_on"
	FieldPayloadOff = "pl_off"

	FieldOptimistic = "opt"

	// IDSep is the separator used to separate various parts of a device ID. It is also used as a replacement for tokens
	// that are not allowed in an ID string.
	IDSep = "__"
)

var (
	// IDSanitizer is a strings.Replacer that sanitizes a device ID for use in an MQTT Topic.
	IDSanitizer = strings.NewReplacer(
		" ", IDSep,
		":", IDSep,
		".", IDSep,
		"!", IDSep,
		"?", IDSep,
		mqtt.SingleLevelWildcard, IDSep,
		mqtt.MultiLevelWildcard, IDSep,
		mqtt.TopicSeparator, IDSep,
	)
)

// Topic builds the per-entity discovery topic `<prefix>/<platform>/<nodeID>/<objectID>/config`.
//
// See https://www.home-assistant.io/integrations/mqtt/#discovery-topic
func Topic(prefix, platform, nodeID, objectID string) string {
	return mqtt.JoinTopic(prefix, platform, IDSanitizer.Replace(nodeID), IDSanitizer.Replace(objectID), "config")
}
