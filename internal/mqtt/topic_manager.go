package mqtt

import (
	"fmt"
	"regexp"
	"strings"
)

type TopicManager struct {
	BaseTopic string
}

const (
	AdvertisementTopicTemplate = "%s/v1/advertisements/+"
	AdapterStateTopicTemplate  = "%s/v1/adapter/state"
	StatusTopicTemplate        = "%s/v1/scanner/status"
)

func (m *TopicManager) GetAdvertisementTopic() string {
	return fmt.Sprintf(AdvertisementTopicTemplate, m.BaseTopic)
}

func (m *TopicManager) GetAdapterStateTopic() string {
	return fmt.Sprintf(AdapterStateTopicTemplate, m.BaseTopic)
}

func (m *TopicManager) GetStatusTopic() string {
	return fmt.Sprintf(StatusTopicTemplate, m.BaseTopic)
}

func (m *TopicManager) buildTopicRegex(template string) *regexp.Regexp {
	pattern := strings.ReplaceAll(template, "%s", m.BaseTopic)
	pattern = strings.ReplaceAll(pattern, "+", "([^/]+)")
	pattern = "^" + pattern + "$"

	return regexp.MustCompile(pattern)
}

// ExtractSourceFromTopic pulls the radio source identifier out of an
// advertisement topic.
func (m *TopicManager) ExtractSourceFromTopic(topic string) (string, error) {
	regex := m.buildTopicRegex(AdvertisementTopicTemplate)
	matches := regex.FindStringSubmatch(topic)

	if len(matches) < 2 {
		return "", fmt.Errorf("could not extract source from topic: %s", topic)
	}

	return matches[1], nil
}

func (m *TopicManager) GetBaseTopic() string {
	if strings.HasSuffix(m.BaseTopic, "/") {
		return m.BaseTopic[:len(m.BaseTopic)-1]
	}
	return m.BaseTopic
}
