package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// Protocol fields.

// ClientID tags the OAuth client the entry belongs to.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// GrantType tags the grant type being exercised.
func GrantType(v string) zap.Field {
	return zap.String("grant_type", v)
}

// Scope tags the granted scope list, comma joined.
func Scope(v string) zap.Field {
	return zap.String("scope", v)
}

// OwnerType tags who the token belongs to, "user" or "client".
func OwnerType(v string) zap.Field {
	return zap.String("owner_type", v)
}

// OwnerID tags the resource owner identifier.
func OwnerID(v string) zap.Field {
	return zap.String("owner_id", v)
}

// ErrorKind tags the protocol error code of a refused request.
func ErrorKind(v string) zap.Field {
	return zap.String("error_kind", v)
}

// System fields.

// Component tags the emitting module.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op tags the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer tags the layer (handler, service, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err wraps an error value.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Generic fields.

func Count(v int) zap.Field {
	return zap.Int("count", v)
}

func Key(v string) zap.Field {
	return zap.String("key", v)
}

func String(key, v string) zap.Field {
	return zap.String(key, v)
}

func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}
