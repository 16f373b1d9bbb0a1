package bridge

import (
	"fmt"
	"log/slog"
	"sync"
)

// Channel names one host event stream.
type Channel string

const (
	ChannelBleStatus                  Channel = "eventBleStatus"
	ChannelBleReceive                 Channel = "eventBleReceive"
	ChannelSpeechRecognize            Channel = "eventSpeechRecognize"
	ChannelNotificationReceived       Channel = "eventNotificationReceived"
	ChannelNotificationListenerStatus Channel = "eventNotificationListenerStatus"
)

// Channels lists every event channel in registration order.
var Channels = []Channel{
	ChannelBleStatus,
	ChannelBleReceive,
	ChannelSpeechRecognize,
	ChannelNotificationReceived,
	ChannelNotificationListenerStatus,
}

// Valid reports whether c is one of the fixed event channels.
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Sink receives payloads published on one channel.
type Sink interface {
	Success(payload any) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(any) error

func (f SinkFunc) Success(payload any) error {
	return f(payload)
}

type registration struct {
	id   uint64
	sink Sink
}

// Broadcaster holds at most one sink per channel and forwards payloads to it.
type Broadcaster struct {
	logger *slog.Logger

	mu     sync.RWMutex
	sinks  map[Channel]registration
	nextID uint64
}

// NewBroadcaster builds an empty broadcaster; every channel starts unsubscribed.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		sinks:  make(map[Channel]registration),
	}
}

// Register stores sink for channel, replacing any prior sink. The returned
// release func unregisters the sink only while it is still the current one.
func (b *Broadcaster) Register(channel Channel, sink Sink) (func(), error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("unknown event channel %q", channel)
	}
	if sink == nil {
		return func() {}, nil
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.sinks[channel] = registration{id: id, sink: sink}
	b.mu.Unlock()

	b.debug("event channel listen", "channel", string(channel))

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if current, ok := b.sinks[channel]; ok && current.id == id {
			delete(b.sinks, channel)
			b.debug("event channel cancel", "channel", string(channel))
		}
	}, nil
}

// Unregister removes whatever sink is stored for channel.
func (b *Broadcaster) Unregister(channel Channel) {
	b.mu.Lock()
	delete(b.sinks, channel)
	b.mu.Unlock()
}

// Active reports whether channel currently has a sink.
func (b *Broadcaster) Active(channel Channel) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.sinks[channel]
	return ok
}

// Publish forwards payload to the channel's sink. Without a sink the payload
// is dropped.
func (b *Broadcaster) Publish(channel Channel, payload any) bool {
	b.mu.RLock()
	current, ok := b.sinks[channel]
	b.mu.RUnlock()
	if !ok {
		return false
	}

	if err := current.sink.Success(payload); err != nil {
		if b.logger != nil {
			b.logger.Warn("event delivery failed", "channel", string(channel), "error", err.Error())
		}
		return false
	}
	return true
}

func (b *Broadcaster) BleStatus(payload any) {
	b.Publish(ChannelBleStatus, payload)
}

func (b *Broadcaster) BleReceive(payload any) {
	b.Publish(ChannelBleReceive, payload)
}

// SpeechRecognize publishes a recognition payload and logs when nobody listens.
func (b *Broadcaster) SpeechRecognize(payload any) {
	if !b.Active(ChannelSpeechRecognize) {
		if b.logger != nil {
			b.logger.Error("speech event dropped; no listener", "channel", string(ChannelSpeechRecognize))
		}
		return
	}
	if b.Publish(ChannelSpeechRecognize, payload) {
		b.debug("speech event sent", "payload", payload)
	}
}

func (b *Broadcaster) NotificationReceived(payload any) {
	b.Publish(ChannelNotificationReceived, payload)
}

func (b *Broadcaster) NotificationListenerStatus(enabled bool) {
	b.Publish(ChannelNotificationListenerStatus, enabled)
}

func (b *Broadcaster) debug(msg string, args ...any) {
	if b.logger == nil {
		return
	}
	b.logger.Debug(msg, args...)
}
