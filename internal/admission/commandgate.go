package admission

// Authorizer is one configured source of command authority (a room users
// list, the account allowlist, the gateway owner list). Unconfigured
// authorizers carry no opinion.
type Authorizer struct {
	Configured bool
	Match      bool
}

// CommandGateInput collects everything the gate needs for one event.
type CommandGateInput struct {
	UseAccessGroups   bool
	Authorizers       []Authorizer
	AllowTextCommands bool
	HasControlCommand bool
}

// CommandGateResult is the gate's verdict.
type CommandGateResult struct {
	// CommandAuthorized reports whether the sender may issue control
	// commands in this conversation.
	CommandAuthorized bool
	// ShouldBlock is true when the event is a control command the sender
	// is not allowed to issue, and must be dropped.
	ShouldBlock bool
}

// ResolveCommandGate decides command authorization.
//
// Default mode ANDs the configured authorizers: every list that exists must
// contain the sender. With no lists configured at all the sender is
// authorized — a bare setup has nobody to defer to. Access-group mode
// (use_access_groups) ORs them instead: membership in any one list is
// enough, and an empty set authorizes.
//
// Commands are only ever blocked when they are commands: allow_text_commands
// off means "/..." text flows through as ordinary prose, so there is nothing
// to gate.
func ResolveCommandGate(in CommandGateInput) CommandGateResult {
	var res CommandGateResult

	if in.UseAccessGroups {
		res.CommandAuthorized = true
		for _, a := range in.Authorizers {
			if !a.Configured {
				continue
			}
			res.CommandAuthorized = false
			if a.Match {
				res.CommandAuthorized = true
				break
			}
		}
	} else {
		res.CommandAuthorized = true
		for _, a := range in.Authorizers {
			if a.Configured && !a.Match {
				res.CommandAuthorized = false
				break
			}
		}
	}

	res.ShouldBlock = in.HasControlCommand && in.AllowTextCommands && !res.CommandAuthorized
	return res
}
