package command

import (
	"context"
	"time"

	"github.com/c360/vssbroker/auth"
	"github.com/c360/vssbroker/errors"
	"github.com/c360/vssbroker/signaltree"
	"github.com/c360/vssbroker/subscription"
)

// Processor dispatches decoded wire requests to the signal tree, the
// authenticator, and the subscription engine, and always returns a
// marshaled response envelope: callers never need to distinguish a
// success reply from an error reply before writing it back to the wire.
type Processor struct {
	store         *signaltree.Store
	authenticator *auth.Authenticator
	exchange      *auth.ExchangeClient
	subs          *subscription.Engine
}

// NewProcessor builds a Processor. exchange may be nil if kuksa-authorize
// is not configured, in which case that action fails as UpstreamUnavailable.
func NewProcessor(store *signaltree.Store, authenticator *auth.Authenticator, exchange *auth.ExchangeClient, subs *subscription.Engine) *Processor {
	return &Processor{store: store, authenticator: authenticator, exchange: exchange, subs: subs}
}

// Handle decodes raw as one wire command, dispatches it against ch, and
// returns the marshaled response envelope. ch is mutated in place by the
// authorize actions; every other action is read-only with respect to ch.
func (p *Processor) Handle(ctx context.Context, ch *auth.Channel, raw []byte) []byte {
	req, err := decodeRequest(raw)
	if err != nil {
		action, requestID := tryExtractRequestID(raw)
		return toEnvelope(err, action, requestID)
	}

	if err := validateSchema(req.Action, raw); err != nil {
		return toEnvelope(err, req.Action, req.RequestID)
	}

	if requiresAuthorization(req.Action) && !ch.IsStillValid(time.Now().Unix()) {
		return toEnvelope(errors.InvalidToken("channel is not authorized", nil), req.Action, req.RequestID)
	}

	var env map[string]any
	switch req.Action {
	case "authorize":
		env, err = p.handleAuthorize(ctx, ch, req)
	case "kuksa-authorize":
		env, err = p.handleKuksaAuthorize(ctx, ch, req)
	case "get":
		env, err = p.handleGet(ch, req)
	case "set":
		env, err = p.handleSet(ch, req)
	case "subscribe":
		env, err = p.handleSubscribe(ch, req)
	case "unsubscribe":
		env, err = p.handleUnsubscribe(ch, req)
	case "getMetadata":
		env, err = p.handleGetMetadata(ch, req)
	default:
		err = errors.SchemaError("unknown action '" + req.Action + "'")
	}

	if err != nil {
		return toEnvelope(err, req.Action, req.RequestID)
	}
	return marshalEnvelope(env)
}

// requiresAuthorization reports whether action may only run on a channel
// that is currently authorized and not token-expired. The two authorize
// actions are the ones that establish that state, so they run unauthorized.
func requiresAuthorization(action string) bool {
	return action != "authorize" && action != "kuksa-authorize"
}

func (p *Processor) handleAuthorize(ctx context.Context, ch *auth.Channel, req request) (map[string]any, error) {
	if err := p.authenticator.Validate(ctx, ch, req.Tokens); err != nil {
		return nil, err
	}
	return p.authorizeEnvelope(ch, req), nil
}

func (p *Processor) handleKuksaAuthorize(ctx context.Context, ch *auth.Channel, req request) (map[string]any, error) {
	if p.exchange == nil {
		return nil, errors.UpstreamUnavailable("kuksa-authorize is not configured", nil)
	}

	token, pub, err := p.exchange.Exchange(ctx, req.ClientID, req.Secret)
	if err != nil {
		return nil, err
	}
	p.authenticator.UpdatePublicKey(pub)

	if err := p.authenticator.Validate(ctx, ch, token); err != nil {
		return nil, err
	}
	return p.authorizeEnvelope(ch, req), nil
}

func (p *Processor) authorizeEnvelope(ch *auth.Channel, req request) map[string]any {
	env := newEnvelope(req.Action, req.RequestID)
	ttl := int64(0)
	if ch.TokenExpiry > 0 {
		if remaining := ch.TokenExpiry - time.Now().Unix(); remaining > 0 {
			ttl = remaining
		}
	}
	env["TTL"] = ttl
	return env
}

func (p *Processor) handleGet(ch *auth.Channel, req request) (map[string]any, error) {
	path, err := resolvePath(req.Path)
	if err != nil {
		return nil, err
	}

	result, err := p.store.GetSignal(path, ch.CheckReadAccess)
	if err != nil {
		return nil, err
	}

	env := newEnvelope(req.Action, req.RequestID)
	if result.Single {
		v := result.Values[0]
		env["path"] = v.Path
		env["value"] = v.Value
	} else {
		values := make([]map[string]any, 0, len(result.Values))
		for _, v := range result.Values {
			values = append(values, map[string]any{"path": v.Path, "value": v.Value, "timestamp": v.Timestamp})
		}
		env["values"] = values
	}
	if result.Warning != "" {
		env["warning"] = result.Warning
	}
	return env, nil
}

func (p *Processor) handleSet(ch *auth.Channel, req request) (map[string]any, error) {
	path, err := resolvePath(req.Path)
	if err != nil {
		return nil, err
	}

	if _, err := p.store.SetSignal(path, req.Value, ch.CheckWriteAccess); err != nil {
		return nil, err
	}
	return newEnvelope(req.Action, req.RequestID), nil
}

func (p *Processor) handleSubscribe(ch *auth.Channel, req request) (map[string]any, error) {
	path, err := resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	if !ch.CheckReadAccess(path.Dotted) {
		return nil, errors.NoPermission("no read access to " + path.Dotted)
	}

	result, err := p.store.GetSignal(path, ch.CheckReadAccess)
	if err != nil {
		return nil, err
	}
	if len(result.Values) != 1 {
		return nil, errors.AmbiguousPath("subscribe requires a path that resolves to exactly one signal: " + path.Dotted)
	}

	wireID := p.subs.Index.Subscribe(result.Values[0].UUID, ch.ConnID)

	env := newEnvelope(req.Action, req.RequestID)
	env["subscriptionId"] = wireID
	return env, nil
}

func (p *Processor) handleUnsubscribe(ch *auth.Channel, req request) (map[string]any, error) {
	wireID, err := req.SubscriptionID.Int64()
	if err != nil {
		return nil, errors.SchemaError("subscriptionId must be an integer")
	}

	connID, found := p.subs.Index.Unsubscribe(uint32(wireID))
	if !found || connID != ch.ConnID {
		return nil, errors.PathNotFound("no such subscription")
	}

	env := newEnvelope(req.Action, req.RequestID)
	env["subscriptionId"] = req.SubscriptionID
	return env, nil
}

func (p *Processor) handleGetMetadata(ch *auth.Channel, req request) (map[string]any, error) {
	path, err := resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	if !ch.CheckReadAccess(path.Dotted) {
		return nil, errors.NoPermission("no read access to " + path.Dotted)
	}

	// An unresolved path is not an error here: getMetadata reports it as a
	// null result, matching every other metadata lookup against the tree.
	metadata, err := p.store.GetMetadata(path)
	if err != nil {
		return nil, err
	}

	env := newEnvelope(req.Action, req.RequestID)
	env["metadata"] = metadata
	return env, nil
}
