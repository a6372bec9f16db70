package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/growbot-project/growbot/internal/events"
	"github.com/growbot-project/growbot/internal/protocol"
	"github.com/growbot-project/growbot/internal/session"
)

// CallHandler handles one named server call. args[0] is the call name.
type CallHandler func(ctx context.Context, args *protocol.VariantList) error

// CallRouter dispatches variant calls by name. Unknown names are ignored.
type CallRouter struct {
	d        *Dispatcher
	handlers map[string]CallHandler
}

// NewCallRouter creates a router bound to a dispatcher's session and transport.
func NewCallRouter(d *Dispatcher) *CallRouter {
	r := &CallRouter{d: d, handlers: make(map[string]CallHandler)}
	r.Handle("OnSendToServer", r.onSendToServer)
	r.Handle("OnConsoleMessage", r.onConsoleMessage)
	return r
}

// Handle registers h for calls named name, replacing any previous handler.
func (r *CallRouter) Handle(name string, h CallHandler) {
	r.handlers[name] = h
}

// Route runs the handler for the call in args.
func (r *CallRouter) Route(ctx context.Context, args *protocol.VariantList) error {
	name, err := args.FunctionName()
	if err != nil {
		return fmt.Errorf("call without a name: %w", err)
	}

	r.d.logger.Debug().Str("call", args.Describe()).Msg("server call")
	r.d.emit(ctx, events.EventServerCall, events.ServerCallPayload{Function: name, Args: args.Describe()})

	h, ok := r.handlers[name]
	if !ok {
		return nil
	}
	if err := h(ctx, args); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// onSendToServer handles a transfer to another game server.
// Arguments: port, token, user id, "ip|door_id|uuid", unused, username.
func (r *CallRouter) onSendToServer(ctx context.Context, args *protocol.VariantList) error {
	port, err := args.Int32(1)
	if err != nil {
		return err
	}
	token, err := args.Int32(2)
	if err != nil {
		return err
	}
	userID, err := args.Int32(3)
	if err != nil {
		return err
	}
	blob, err := args.String(4)
	if err != nil {
		return err
	}
	username, err := args.String(6)
	if err != nil {
		return err
	}

	tokens := protocol.SplitTokens(blob)
	if len(tokens) < 3 {
		return fmt.Errorf("server data %q has %d fields, want 3", blob, len(tokens))
	}

	target := session.ServerTarget{
		IP:     tokens[0],
		Port:   strconv.Itoa(int(port)),
		Token:  strconv.Itoa(int(token)),
		UserID: strconv.Itoa(int(userID)),
		DoorID: tokens[1],
		UUID:   tokens[2],
	}

	from := r.d.session.State()
	peer, ok := r.d.session.SetRedirect(target, username)
	r.d.logger.Info().
		Str("ip", target.IP).
		Str("port", target.Port).
		Str("door_id", target.DoorID).
		Str("username", username).
		Msg("redirected to another server")
	r.d.emitTransition(ctx, from, r.d.session.State())
	r.d.emit(ctx, events.EventRedirect, events.RedirectPayload{
		IP:       target.IP,
		Port:     target.Port,
		DoorID:   target.DoorID,
		Username: username,
	})

	return r.d.disconnect(peer, ok)
}

func (r *CallRouter) onConsoleMessage(_ context.Context, args *protocol.VariantList) error {
	text, err := args.String(1)
	if err != nil {
		return err
	}
	r.d.logger.Info().Str("text", text).Msg("console message")
	return nil
}
