// Package broker embeds an MQTT broker for running the stack without an
// external one.
package broker

import (
	"bytes"
	"fmt"
	"sync/atomic"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/telemetry"
)

type Broker struct {
	server *mqtt.Server
	hook   *telemetryHook
	addr   string
}

func New(addr string) (*Broker, error) {
	server := mqtt.New(nil)
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add auth hook: %w", err)
	}
	hook := new(telemetryHook)
	if err := server.AddHook(hook, nil); err != nil {
		return nil, fmt.Errorf("add telemetry hook: %w", err)
	}
	tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: addr})
	if err := server.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("add TCP listener: %w", err)
	}
	return &Broker{server: server, hook: hook, addr: addr}, nil
}

// Start begins accepting clients; it does not block.
func (b *Broker) Start() error {
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("serve mqtt: %w", err)
	}
	log.Info().Str("addr", b.addr).Msg("mqtt broker listening")
	return nil
}

func (b *Broker) Close() error { return b.server.Close() }

// Readings is the number of valid sensor readings relayed so far.
func (b *Broker) Readings() int64 { return b.hook.readings.Load() }

// Rejected is the number of sensor messages that failed to decode.
func (b *Broker) Rejected() int64 { return b.hook.rejected.Load() }

// telemetryHook logs client sessions and checks sensor payloads in flight.
type telemetryHook struct {
	mqtt.HookBase
	readings atomic.Int64
	rejected atomic.Int64
}

func (h *telemetryHook) ID() string { return "integrityos-telemetry" }

func (h *telemetryHook) Provides(b byte) bool {
	return bytes.Contains([]byte{
		mqtt.OnConnect,
		mqtt.OnDisconnect,
		mqtt.OnPublish,
	}, []byte{b})
}

func (h *telemetryHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	log.Info().Str("client", cl.ID).Str("remote", cl.Net.Remote).Msg("mqtt client connected")
	return nil
}

func (h *telemetryHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("client", cl.ID).Bool("expire", expire).Msg("mqtt client disconnected")
}

func (h *telemetryHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	if _, ok := telemetry.PipelineFromTopic(pk.TopicName); !ok {
		return pk, nil
	}
	r, err := telemetry.Decode(pk.TopicName, pk.Payload)
	if err != nil {
		h.rejected.Add(1)
		log.Warn().Err(err).Str("client", cl.ID).Str("topic", pk.TopicName).Msg("malformed sensor reading")
		return pk, nil
	}
	h.readings.Add(1)
	log.Debug().Str("client", cl.ID).Str("pipeline", r.PipelineID).Float64("temperature", r.Temperature).Msg("sensor reading")
	return pk, nil
}
