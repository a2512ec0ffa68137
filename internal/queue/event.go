// Package queue defines message payloads exchanged over the message broker
// and the background consumer that persists them.
package queue

// AuthEventQueue is the durable queue carrying authentication events.
const AuthEventQueue = "auth.events"

// Auth event kinds.
const (
	EventLogin        = "login"
	EventLogout       = "logout"
	EventTokenRefresh = "token_refresh"
)

// AuthEvent is published whenever a user logs in, logs out or refreshes a
// session. The consumer writes it to the auth_logs audit table; losing an
// event never fails the request that produced it.
type AuthEvent struct {
	UserID     string `json:"user_id"`
	Event      string `json:"event"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
