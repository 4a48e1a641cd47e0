package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"

	"github.com/nextlevelbuilder/clawgate/internal/bus"
	"github.com/nextlevelbuilder/clawgate/pkg/protocol"
)

// MethodHandler handles a single RPC method. Returning a non-nil ErrorInfo
// produces an error response.
type MethodHandler func(ctx context.Context, c *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo)

// MethodRouter dispatches request frames to registered handlers.
type MethodRouter struct {
	server   *Server
	handlers map[string]MethodHandler
}

// NewMethodRouter creates a router with the built-in method set registered.
func NewMethodRouter(s *Server) *MethodRouter {
	r := &MethodRouter{
		server:   s,
		handlers: make(map[string]MethodHandler),
	}

	r.Register(protocol.MethodConnect, r.handleConnect)
	r.Register(protocol.MethodHealth, r.handleHealth)
	r.Register(protocol.MethodStatus, r.handleStatus)
	r.Register(protocol.MethodChatSend, r.handleChatSend)
	r.Register(protocol.MethodSessionsList, r.handleSessionsList)
	r.Register(protocol.MethodSessionsDelete, r.handleSessionsDelete)
	r.Register(protocol.MethodChannelsList, r.handleChannelsList)
	r.Register(protocol.MethodChannelsStatus, r.handleChannelsStatus)
	r.Register(protocol.MethodPairingList, r.handlePairingList)
	r.Register(protocol.MethodPairingApprove, r.handlePairingApprove)
	r.Register(protocol.MethodPairingRevoke, r.handlePairingRevoke)
	r.Register(protocol.MethodConfigGet, r.handleConfigGet)

	return r
}

// Register adds a method handler.
func (r *MethodRouter) Register(method string, h MethodHandler) {
	r.handlers[method] = h
}

// Dispatch routes one request frame. Every method except connect requires a
// completed handshake, and all methods share the per-client rate budget.
func (r *MethodRouter) Dispatch(ctx context.Context, c *Client, req protocol.RequestFrame) protocol.ResponseFrame {
	if req.Method != protocol.MethodConnect && !c.Authed() {
		return protocol.ErrResponse(req.ID, protocol.ErrUnauthorized, "connect first")
	}

	if !r.server.rateLimiter.Allow(c.ID()) {
		return protocol.ErrResponse(req.ID, protocol.ErrRateLimited, "rate limit exceeded")
	}

	handler, ok := r.handlers[req.Method]
	if !ok {
		return protocol.ErrResponse(req.ID, protocol.ErrUnknownMethod, "unknown method: "+req.Method)
	}

	result, errInfo := handler(ctx, c, req.Params)
	if errInfo != nil {
		return protocol.ResponseFrame{Type: protocol.FrameResponse, ID: req.ID, OK: false, Error: errInfo}
	}
	return protocol.OKResponse(req.ID, result)
}

func badParams(msg string) *protocol.ErrorInfo {
	return &protocol.ErrorInfo{Code: protocol.ErrBadParams, Message: msg}
}

func internalErr(err error) *protocol.ErrorInfo {
	return &protocol.ErrorInfo{Code: protocol.ErrInternal, Message: err.Error()}
}

type connectParams struct {
	Token string `json:"token"`
}

func (r *MethodRouter) handleConnect(_ context.Context, c *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p connectParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, badParams("invalid connect params")
		}
	}

	token := r.server.cfg.GatewaySnapshot().Token
	if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(p.Token)) != 1 {
		slog.Warn("client auth failed", "id", c.ID())
		return nil, &protocol.ErrorInfo{Code: protocol.ErrUnauthorized, Message: "invalid token"}
	}

	c.setAuthed()
	return map[string]interface{}{
		"protocol":  protocol.ProtocolVersion,
		"client_id": c.ID(),
	}, nil
}

func (r *MethodRouter) handleHealth(context.Context, *Client, json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	return map[string]string{"status": "ok"}, nil
}

func (r *MethodRouter) handleStatus(context.Context, *Client, json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	return map[string]interface{}{
		"channels": r.server.manager.GetStatus(),
	}, nil
}

type chatSendParams struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r *MethodRouter) handleChatSend(_ context.Context, _ *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p chatSendParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, badParams("invalid chat.send params")
	}
	if p.Channel == "" || p.ChatID == "" {
		return nil, badParams("channel and chat_id are required")
	}

	r.server.msgBus.PublishOutbound(bus.OutboundMessage{
		Channel:  p.Channel,
		ChatID:   p.ChatID,
		Content:  p.Content,
		Metadata: p.Metadata,
	})
	return map[string]bool{"queued": true}, nil
}

type sessionsListParams struct {
	AgentID string `json:"agent_id,omitempty"`
}

func (r *MethodRouter) handleSessionsList(_ context.Context, _ *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p sessionsListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, badParams("invalid sessions.list params")
		}
	}
	return r.server.catalog.List(p.AgentID), nil
}

type sessionsDeleteParams struct {
	Key string `json:"key"`
}

func (r *MethodRouter) handleSessionsDelete(_ context.Context, _ *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p sessionsDeleteParams
	if err := json.Unmarshal(params, &p); err != nil || p.Key == "" {
		return nil, badParams("key is required")
	}
	if err := r.server.catalog.Delete(p.Key); err != nil {
		return nil, internalErr(err)
	}
	return map[string]bool{"deleted": true}, nil
}

func (r *MethodRouter) handleChannelsList(context.Context, *Client, json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	return r.server.manager.GetEnabledChannels(), nil
}

func (r *MethodRouter) handleChannelsStatus(context.Context, *Client, json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	return r.server.manager.GetStatus(), nil
}

type pairingListParams struct {
	Channel string `json:"channel,omitempty"`
}

func (r *MethodRouter) handlePairingList(ctx context.Context, _ *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p pairingListParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, badParams("invalid pairing.list params")
		}
	}
	reqs, err := r.server.pairing.List(ctx, p.Channel)
	if err != nil {
		return nil, internalErr(err)
	}
	return reqs, nil
}

type pairingApproveParams struct {
	Code string `json:"code"`
}

func (r *MethodRouter) handlePairingApprove(ctx context.Context, _ *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p pairingApproveParams
	if err := json.Unmarshal(params, &p); err != nil || p.Code == "" {
		return nil, badParams("code is required")
	}

	req, err := r.server.pairing.Approve(ctx, p.Code)
	if err != nil {
		return nil, &protocol.ErrorInfo{Code: protocol.ErrNotFound, Message: err.Error()}
	}

	r.server.BroadcastEvent(*protocol.NewEvent(protocol.EventPairingResolved, map[string]string{
		"channel": req.Channel,
		"subject": req.Subject,
	}))
	return req, nil
}

type pairingRevokeParams struct {
	Channel string `json:"channel"`
	Subject string `json:"subject"`
}

func (r *MethodRouter) handlePairingRevoke(ctx context.Context, _ *Client, params json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	var p pairingRevokeParams
	if err := json.Unmarshal(params, &p); err != nil || p.Channel == "" || p.Subject == "" {
		return nil, badParams("channel and subject are required")
	}
	if err := r.server.pairing.Revoke(ctx, p.Channel, p.Subject); err != nil {
		return nil, internalErr(err)
	}
	return map[string]bool{"revoked": true}, nil
}

func (r *MethodRouter) handleConfigGet(context.Context, *Client, json.RawMessage) (interface{}, *protocol.ErrorInfo) {
	return r.server.cfg.MaskedCopy(), nil
}
