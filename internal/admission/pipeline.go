package admission

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/clawgate/internal/config"
	"github.com/nextlevelbuilder/clawgate/internal/sessions"
)

// Decision is the pipeline's verdict for one inbound event.
type Decision string

const (
	DecisionDrop  Decision = "drop"  // silently discarded
	DecisionPair  Decision = "pair"  // discarded after issuing a pairing code
	DecisionAdmit Decision = "admit" // forwarded to the dispatcher
)

// Outcome is what the pipeline returns for every event. Context is non-nil
// only for DecisionAdmit.
type Outcome struct {
	Decision    Decision
	Reason      string
	PairingCode string
	Context     *FinalizedContext
}

func dropOutcome(reason string) Outcome {
	return Outcome{Decision: DecisionDrop, Reason: reason}
}

// PairingStore issues and tracks pairing requests. Upsert is idempotent per
// (channel, senderID): the first call creates the request and returns
// created=true; later calls return the same code with created=false.
type PairingStore interface {
	Upsert(ctx context.Context, channel, senderID string, meta map[string]string) (code string, created bool, err error)
	AllowFrom(ctx context.Context, channel string) ([]string, error)
}

// SessionCatalog tracks which session keys have been observed. Touch returns
// true on first sight, which is how new threads are detected.
type SessionCatalog interface {
	Touch(key, parentKey, label string, kind sessions.PeerKind) bool
}

// AdapterHooks are per-call callbacks into the originating adapter for the
// few platform actions the pipeline may need mid-decision. Either may be nil.
type AdapterHooks struct {
	// SendPairingReply delivers the pairing-code notice to the sender.
	// Called at most once per created pairing request; failures are logged
	// and do not change the decision.
	SendPairingReply func(ctx context.Context, code string) error
	// FetchThreadStarter loads the thread's origin message when a thread
	// session is seen for the first time.
	FetchThreadStarter func(ctx context.Context) (ThreadStarter, error)
}

// Account describes the channel account an event arrived on. Adapters build
// one per inbound event from live config so hot-reloaded settings apply
// immediately.
type Account struct {
	Channel         string
	Settings        config.AccountSettings
	Defaults        ChannelDefaults
	MentionPatterns []*regexp.Regexp
	CommandPrefixes []string
	OwnerIDs        []string // gateway-level owner senders, one of the command authorizers
}

// Pipeline runs the admission sequence. It holds no per-conversation state
// of its own; pairing requests, pending history, and the session catalog
// live behind the injected collaborators.
type Pipeline struct {
	pairing PairingStore   // nil disables pairing (pairing policies then reject)
	history *PendingHistory
	catalog SessionCatalog // nil disables thread-starter fetch
	cfg     *config.Config
	tracer  trace.Tracer
}

func NewPipeline(cfg *config.Config, pairing PairingStore, history *PendingHistory, catalog SessionCatalog) *Pipeline {
	if history == nil {
		history = NewPendingHistory()
	}
	return &Pipeline{
		pairing: pairing,
		history: history,
		catalog: catalog,
		cfg:     cfg,
		tracer:  otel.Tracer("clawgate/admission"),
	}
}

// History exposes the pending-history buffer (the doctor command inspects it).
func (p *Pipeline) History() *PendingHistory { return p.history }

// Process runs the full admission sequence for one event and returns the
// decision. It never returns an error: anything that goes wrong downgrades
// to a conservative DROP, because a gateway that errors open is worse than
// one that stays quiet.
func (p *Pipeline) Process(ctx context.Context, acct Account, ev Event, hooks AdapterHooks) Outcome {
	ctx, span := p.tracer.Start(ctx, "admission.process",
		trace.WithAttributes(
			attribute.String("channel", ev.Channel),
			attribute.String("peer.kind", string(ev.PeerKind)),
		))
	out := p.process(ctx, acct, ev, hooks)
	span.SetAttributes(
		attribute.String("decision", string(out.Decision)),
		attribute.String("reason", out.Reason),
	)
	span.End()
	return out
}

func (p *Pipeline) process(ctx context.Context, acct Account, ev Event, hooks AdapterHooks) Outcome {
	log := slog.With("channel", ev.Channel, "peer", ev.PeerID, "sender", ev.SenderID)

	// Echoes of our own outbound messages never re-enter.
	if ev.FromSelf {
		return dropOutcome("self-message")
	}

	roomID, roomName := ev.PeerID, ev.PeerName
	if ev.PeerKind == sessions.PeerThread && ev.ThreadParentID != "" {
		roomID = ev.ThreadParentID
	}
	policy := ResolvePolicy(acct.Defaults, acct.Settings, roomID, roomName)

	if ev.FromBot && !policy.AllowBots {
		log.Debug("dropping message from bot author")
		return dropOutcome("bot-author")
	}
	if !policy.Enabled {
		log.Debug("dropping message for disabled surface")
		return dropOutcome("disabled")
	}

	sender := SenderIdentity(ev.SenderID, ev.SenderDisplay, ev.SenderTag)
	groupLike := ev.PeerKind.IsGroupLike()

	var senderAllowed bool
	if groupLike {
		out, allowed := p.admitGroup(ctx, log, policy, ev, sender, hooks)
		if out != nil {
			return *out
		}
		senderAllowed = allowed
	} else {
		out, allowed := p.admitDM(ctx, log, policy, ev, sender, hooks)
		if out != nil {
			return *out
		}
		senderAllowed = allowed
	}

	// Command gate
	hasCommand := HasControlCommand(ev.RawText, acct.CommandPrefixes)
	gate := ResolveCommandGate(CommandGateInput{
		UseAccessGroups:   policy.UseAccessGroups,
		AllowTextCommands: policy.AllowTextCommands,
		HasControlCommand: hasCommand,
		Authorizers: []Authorizer{
			{Configured: len(acct.OwnerIDs) > 0, Match: MatchesAllowList(acct.OwnerIDs, sender)},
			{Configured: len(policy.RoomUsers) > 0, Match: MatchesAllowList(policy.RoomUsers, sender)},
		},
	})
	commandAuthorized := gate.CommandAuthorized || senderAllowed
	if hasCommand && policy.AllowTextCommands && !commandAuthorized {
		log.Debug("dropping unauthorized control command")
		return dropOutcome("command-unauthorized")
	}

	// Mention gating, after all policy checks so pending history only ever
	// holds messages from senders this room accepts.
	historyKey := historyKey(ev)
	wasMentioned := true
	if groupLike {
		mention := DetectMention(ev, acct.MentionPatterns)
		wasMentioned = mention.WasMentioned
		if policy.RequireMention && !wasMentioned {
			// Authorized senders' commands pass without a mention.
			if !(hasCommand && commandAuthorized) {
				if ev.RawText != "" {
					p.history.Record(historyKey, HistoryEntry{
						Sender:    displayName(ev),
						Body:      ev.RawText,
						MessageID: ev.MessageID,
						Timestamp: time.UnixMilli(ev.TimestampMs),
					}, policy.HistoryLimit)
				}
				log.Debug("dropping group message without mention", "pending", p.history.Len(historyKey))
				return dropOutcome("no-mention")
			}
		}
	}

	// Routing
	routePeerID := ev.PeerID
	if ev.PeerKind == sessions.PeerThread && ev.ThreadParentID != "" {
		routePeerID = ev.ThreadParentID
	}
	agentID := sessions.ResolveAgent(p.cfg.RouteBindings(), p.cfg.ResolveDefaultAgentID(), sessions.RouteInput{
		Channel:   ev.Channel,
		AccountID: ev.AccountID,
		GuildID:   ev.GuildID,
		PeerKind:  ev.PeerKind,
		PeerID:    routePeerID,
	})

	// Threads fork sessions under the parent surface's kind, so a Discord
	// thread keys as channel:{threadID} and a forum topic as
	// group:{chatID}:topic:{n}.
	keyKind := ev.PeerKind
	if ev.PeerKind == sessions.PeerThread {
		keyKind = ev.ThreadParentKind
		if keyKind == "" {
			keyKind = sessions.PeerChannel
		}
	}

	scope := p.cfg.Sessions
	sessionKey := ""
	if scope.Scope != "global" && ev.PeerKind == sessions.PeerThread && keyKind == sessions.PeerGroup && ev.ThreadParentID != "" {
		// Forum topics arrive with the adapter-composed peer "{chat}:topic:{n}";
		// build the key structurally so the topic suffix survives segment
		// escaping.
		if rest, ok := strings.CutPrefix(ev.PeerID, ev.ThreadParentID+":topic:"); ok {
			if topicID, err := strconv.Atoi(rest); err == nil {
				sessionKey = sessions.BuildGroupTopicSessionKey(agentID, ev.Channel, ev.AccountID, ev.ThreadParentID, topicID)
			}
		}
	}
	if sessionKey == "" {
		sessionKey = sessions.BuildScopedSessionKey(agentID, ev.Channel, ev.AccountID, keyKind, ev.PeerID,
			scope.Scope, scope.DmScope, scope.MainKey)
	}

	var parentKey string
	if ev.PeerKind == sessions.PeerThread && ev.ThreadParentID != "" && ev.ThreadParentID != ev.PeerID {
		parentKey = sessions.BuildSessionKey(agentID, ev.Channel, ev.AccountID, keyKind, ev.ThreadParentID)
	}

	starterBody := ""
	threadLabel := ev.ThreadLabel
	firstSeen := false
	if p.catalog != nil {
		firstSeen = p.catalog.Touch(sessionKey, parentKey, threadLabel, ev.PeerKind)
	}
	if firstSeen && ev.PeerKind == sessions.PeerThread && hooks.FetchThreadStarter != nil {
		if starter, err := hooks.FetchThreadStarter(ctx); err != nil {
			log.Warn("thread starter fetch failed", "error", err)
		} else {
			starterBody = starter.Body
			if starter.Label != "" {
				threadLabel = starter.Label
			}
		}
	}

	// Assemble
	body := ev.RawText
	if groupLike {
		body = p.history.BuildContext(historyKey, displayName(ev), ev.RawText)
	}

	fc := &FinalizedContext{
		Channel:           ev.Channel,
		AccountID:         ev.AccountID,
		AgentID:           agentID,
		ChatType:          ev.PeerKind,
		SessionKey:        sessionKey,
		ParentSessionKey:  parentKey,
		Body:              body,
		RawBody:           ev.RawText,
		CommandText:       CommandText(ev.RawText, acct.CommandPrefixes),
		SenderID:          ev.SenderID,
		SenderDisplay:     ev.SenderDisplay,
		SenderTag:         ev.SenderTag,
		ConversationLabel: conversationLabel(ev, threadLabel),
		ThreadStarterBody: starterBody,
		WasMentioned:      wasMentioned,
		CommandAuthorized: commandAuthorized,
		Tools:             policy.RoomTools,
		ReplyTarget:       ev.PeerID,
		MessageID:         ev.MessageID,
		TimestampMs:       ev.TimestampMs,
		Metadata:          ev.Metadata,
	}

	log.Debug("admitted inbound message", "agent", agentID, "session", sessionKey)
	return Outcome{Decision: DecisionAdmit, Context: fc}
}

// admitDM applies the DM policy. Returns a non-nil outcome to short-circuit,
// or (nil, senderAllowed) to continue.
func (p *Pipeline) admitDM(ctx context.Context, log *slog.Logger, policy Resolved, ev Event, sender Identity, hooks AdapterHooks) (*Outcome, bool) {
	switch policy.DMPolicy {
	case DMPolicyDisabled:
		log.Debug("dropping DM, policy disabled")
		out := dropOutcome("dm-disabled")
		return &out, false

	case DMPolicyOpen, DMPolicyAllowlist, DMPolicyPairing:
		allow := policy.AllowFrom
		if p.pairing != nil {
			if paired, err := p.pairing.AllowFrom(ctx, ev.Channel); err != nil {
				log.Warn("pairing allowlist read failed", "error", err)
			} else {
				allow = append(append([]string{}, allow...), paired...)
			}
		}
		if MatchesAllowList(allow, sender) {
			return nil, true
		}
		if policy.DMPolicy != DMPolicyPairing {
			log.Debug("dropping DM from sender not in allowlist")
			out := dropOutcome("not-allowlisted")
			return &out, false
		}
		out := p.startPairing(ctx, log, ev, ev.SenderID, hooks)
		return &out, false

	default:
		log.Debug("dropping DM, unknown policy", "policy", string(policy.DMPolicy))
		out := dropOutcome("dm-disabled")
		return &out, false
	}
}

// admitGroup applies room and sender checks for group-like surfaces.
func (p *Pipeline) admitGroup(ctx context.Context, log *slog.Logger, policy Resolved, ev Event, sender Identity, hooks AdapterHooks) (*Outcome, bool) {
	roomID := ev.PeerID
	if ev.PeerKind == sessions.PeerThread && ev.ThreadParentID != "" {
		roomID = ev.ThreadParentID
	}
	room := Identity{ID: roomID, Name: ev.PeerName}

	switch policy.GroupPolicy {
	case GroupPolicyDisabled:
		log.Debug("dropping group message, policy disabled")
		out := dropOutcome("group-disabled")
		return &out, false

	case GroupPolicyAllowlist:
		if !MatchesAllowList(policy.GroupAllowFrom, room) {
			log.Debug("dropping message from room not in allowlist")
			out := dropOutcome("room-not-allowlisted")
			return &out, false
		}

	case GroupPolicyPairing:
		pairedID := "group:" + roomID
		allow := policy.GroupAllowFrom
		if p.pairing != nil {
			if paired, err := p.pairing.AllowFrom(ctx, ev.Channel); err != nil {
				log.Warn("pairing allowlist read failed", "error", err)
			} else {
				allow = append(append([]string{}, allow...), paired...)
			}
		}
		if !MatchesAllowList(allow, Identity{ID: pairedID, Name: ev.PeerName}) && !MatchesAllowList(allow, room) {
			out := p.startPairing(ctx, log, ev, pairedID, hooks)
			return &out, false
		}

	default: // open
		// A configured room allowlist still applies under "open".
		if len(policy.GroupAllowFrom) > 0 && !MatchesAllowList(policy.GroupAllowFrom, room) {
			log.Debug("dropping message from room not in allowlist")
			out := dropOutcome("room-not-allowlisted")
			return &out, false
		}
	}

	// Per-sender allowlist inside an admitted room, when configured.
	senderAllowed := MatchesAllowList(policy.AllowFrom, sender)
	return nil, senderAllowed
}

// startPairing issues (or re-reads) the pairing request for subject and
// notifies the sender exactly once, on creation.
func (p *Pipeline) startPairing(ctx context.Context, log *slog.Logger, ev Event, subject string, hooks AdapterHooks) Outcome {
	if p.pairing == nil {
		log.Debug("dropping message, pairing policy without pairing store")
		return dropOutcome("pairing-unavailable")
	}

	meta := map[string]string{
		"name": displayName(ev),
	}
	code, created, err := p.pairing.Upsert(ctx, ev.Channel, subject, meta)
	if err != nil {
		log.Warn("pairing upsert failed", "error", err)
		return dropOutcome("pairing-error")
	}
	if !created {
		log.Debug("dropping message from sender with pending pairing request")
		return dropOutcome("pairing-pending")
	}

	if hooks.SendPairingReply != nil {
		if err := hooks.SendPairingReply(ctx, code); err != nil {
			log.Warn("pairing reply failed", "error", err)
		}
	}
	log.Info("issued pairing code", "subject", subject)
	return Outcome{Decision: DecisionPair, Reason: "pairing-started", PairingCode: code}
}

func historyKey(ev Event) string {
	key := ev.Channel + ":" + ev.AccountID + ":" + ev.PeerID
	if ev.PeerKind == sessions.PeerThread && ev.ThreadParentID != "" {
		key = ev.Channel + ":" + ev.AccountID + ":" + ev.ThreadParentID + ":" + ev.PeerID
	}
	return key
}

func displayName(ev Event) string {
	if ev.SenderDisplay != "" {
		return ev.SenderDisplay
	}
	if ev.SenderTag != "" {
		return "@" + ev.SenderTag
	}
	return ev.SenderID
}

func conversationLabel(ev Event, threadLabel string) string {
	if threadLabel != "" {
		return threadLabel
	}
	return ev.PeerName
}
