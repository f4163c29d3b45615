package mqtt

import "fmt"

// DefaultTopicPrefix is used when Topics.Prefix is empty.
const DefaultTopicPrefix = "litesql"

// Topics builds the MQTT topics a litesql process publishes to.
//
// Every topic lives under "<prefix>/<client_id>", so several processes can
// share one broker:
//
//	topics := mqtt.Topics{Prefix: "litesql", ClientID: "reporting"}
//	topics.Status()                   // litesql/reporting/status
//	topics.ConnectionEvents("app.db") // litesql/reporting/connections/app.db/events
type Topics struct {
	Prefix   string
	ClientID string
}

func (t Topics) base() string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s/%s", prefix, t.ClientID)
}

// Status returns the retained online/offline topic. The broker also
// publishes the Last Will here.
func (t Topics) Status() string {
	return t.base() + "/status"
}

// ConnectionEvents returns the topic for lifecycle events of one database
// connection. MQTT wildcard and separator characters in connID are
// replaced, and an empty connID (in-memory database) becomes "memory".
func (t Topics) ConnectionEvents(connID string) string {
	return fmt.Sprintf("%s/connections/%s/events", t.base(), topicSegment(connID))
}

// AllConnectionEvents returns a wildcard subscription matching the events
// of every connection of this client.
func (t Topics) AllConnectionEvents() string {
	return t.base() + "/connections/+/events"
}

// topicSegment makes s safe to use as one topic level.
func topicSegment(s string) string {
	if s == "" || s == ":memory:" {
		return "memory"
	}

	out := []byte(s)
	for i, b := range out {
		switch b {
		case '/', '+', '#', 0:
			out[i] = '_'
		}
	}
	return string(out)
}
