package protocol

// RPC method name constants.
const (
	// System
	MethodConnect = "connect"
	MethodHealth  = "health"
	MethodStatus  = "status"

	// Chat: the agent backend replies to dispatched messages with chat.send.
	MethodChatSend = "chat.send"

	// Sessions
	MethodSessionsList   = "sessions.list"
	MethodSessionsDelete = "sessions.delete"

	// Channels
	MethodChannelsList   = "channels.list"
	MethodChannelsStatus = "channels.status"

	// Pairing administration
	MethodPairingList    = "pairing.list"
	MethodPairingApprove = "pairing.approve"
	MethodPairingRevoke  = "pairing.revoke"

	// Config
	MethodConfigGet = "config.get"
)
