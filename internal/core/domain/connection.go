package domain

// ConnectionState represents the state of the node event stream.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	return string(s)
}
