package mqtt

import (
	"encoding/json"
	"time"
)

// Presence states published retained on Topics.Status.
const (
	stateOnline  = "online"
	stateOffline = "offline"
)

// Reasons attached to an offline presence.
const (
	reasonShutdown   = "shutdown"
	reasonConnection = "connection_lost"
)

// presence is the retained document on Topics.Status. The broker holds the
// latest one, so a subscriber joining late still learns whether this
// process is up.
type presence struct {
	State    string `json:"state"`
	ClientID string `json:"client_id"`
	Reason   string `json:"reason,omitempty"`
	Since    string `json:"since"`
}

func presenceJSON(clientID, state, reason string, at time.Time) []byte {
	data, _ := json.Marshal(presence{ //nolint:errcheck // String fields only
		State:    state,
		ClientID: clientID,
		Reason:   reason,
		Since:    at.UTC().Format(time.RFC3339),
	})
	return data
}

// onlinePresence is published after every (re)connect.
func onlinePresence(clientID string) []byte {
	return presenceJSON(clientID, stateOnline, "", time.Now())
}

// shutdownPresence replaces the online message when Close runs.
func shutdownPresence(clientID string) []byte {
	return presenceJSON(clientID, stateOffline, reasonShutdown, time.Now())
}

// willPresence is registered with the broker at connect and published by
// it if the session drops without a disconnect. Its timestamp is the
// connect time.
func willPresence(clientID string) []byte {
	return presenceJSON(clientID, stateOffline, reasonConnection, time.Now())
}
