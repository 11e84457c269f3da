package logx

import (
	"context"

	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	exchangeKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithExchange annotates the logger with the exchange id if present.
func WithExchange(log pslog.Logger, exchangeID schema.ExchangeID) pslog.Logger {
	if exchangeID != "" {
		log = log.With("exchange", exchangeID)
	}
	return log
}

// WithSession annotates the logger with an agent session id when available.
func WithSession(log pslog.Logger, sessionID schema.SessionID) pslog.Logger {
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	return log
}

// WithMode annotates the logger with the permission mode.
func WithMode(log pslog.Logger, mode schema.PermissionMode) pslog.Logger {
	if mode != "" {
		log = log.With("mode", mode)
	}
	return log
}

// ContextWithExchange stores the exchange marker on the context.
func ContextWithExchange(ctx context.Context, exchangeID schema.ExchangeID) context.Context {
	if ctx == nil || exchangeID == "" {
		return ctx
	}
	return context.WithValue(ctx, exchangeKey, exchangeID)
}

// ExchangeFromContext returns the exchange marker stored on ctx.
func ExchangeFromContext(ctx context.Context) schema.ExchangeID {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(exchangeKey).(schema.ExchangeID)
	return id
}

// ContextWithExchangeLogger attaches an exchange-annotated logger and the
// exchange marker to the context.
func ContextWithExchangeLogger(ctx context.Context, log pslog.Logger, exchangeID schema.ExchangeID) context.Context {
	if current := ExchangeFromContext(ctx); current != exchangeID {
		log = WithExchange(log, exchangeID)
	}
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithExchange(ctx, exchangeID)
}
