package mqtt

import "strings"

const (
	TopicSeparator = "/"

	// SingleLevelWildcard matches exactly one topic level in a subscription filter.
	SingleLevelWildcard = "+"
	// MultiLevelWildcard matches any number of trailing topic levels in a subscription filter.
	MultiLevelWildcard = "#"
)

// TrimTopic trims TopicSeparator from the start and end of the specified topic.
func TrimTopic(topic string) string {
	return strings.Trim(topic, TopicSeparator)
}

// JoinTopic joins non-empty component parts with TopicSeparator, trimming each part as it is appended.
func JoinTopic(parts ...string) string {
	var result strings.Builder

	for _, part := range parts {
		part = TrimTopic(part)
		if part == "" {
			continue
		}

		if result.Len() > 0 {
			result.WriteString(TopicSeparator)
		}
		result.WriteString(part)
	}

	return result.String()
}

// SplitTopic splits a topic into its levels after trimming leading and trailing separators.
func SplitTopic(topic string) []string {
	topic = TrimTopic(topic)
	if topic == "" {
		return nil
	}

	return strings.Split(topic, TopicSeparator)
}

// MatchTopic reports whether topic matches the subscription filter, honouring SingleLevelWildcard and
// MultiLevelWildcard.
func MatchTopic(filter, topic string) bool {
	f := SplitTopic(filter)
	t := SplitTopic(topic)

	for i, level := range f {
		if level == MultiLevelWildcard {
			return true
		}

		if i >= len(t) {
			return false
		}

		if level != SingleLevelWildcard && level != t[i] {
			return false
		}
	}

	return len(f) == len(t)
}
