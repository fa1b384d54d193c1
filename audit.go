package hsAuth

import (
	"io"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/hsAuth/internal/audit"
)

// AuditEvent is one security-relevant occurrence.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher.
type AuditSink = internalaudit.Sink

type (
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	ZapSink        = internalaudit.ZapSink
)

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewZapSink(logger *zap.Logger) *ZapSink { return internalaudit.NewZapSink(logger) }
