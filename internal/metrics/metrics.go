// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesReceived counts chat entries accepted into the log, by channel.
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamchat_messages_received_total",
		Help: "Chat messages received from the relay and accepted into the log.",
	}, []string{"channel"})

	// MessagesSent counts PRIVMSG lines written to the relay, by channel.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamchat_messages_sent_total",
		Help: "Chat messages sent to the relay.",
	}, []string{"channel"})

	// Reconnects counts scheduled reconnect attempts.
	Reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamchat_reconnects_total",
		Help: "Reconnect attempts scheduled after the relay connection ended.",
	})

	// ConnectionState exposes the numeric client state.
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamchat_connection_state",
		Help: "Current relay connection state (see chat.State).",
	})
)
