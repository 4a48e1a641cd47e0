package protocol

// WebSocket event names pushed from server to client.
const (
	// EventMessage carries an admitted, finalized inbound message.
	EventMessage = "message"

	EventHealth   = "health"
	EventShutdown = "shutdown"

	// Pairing lifecycle (payload: channel, subject, code).
	EventPairingRequested = "pairing.requested"
	EventPairingResolved  = "pairing.resolved"
)
