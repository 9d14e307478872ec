// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package metrics exports RESP traffic counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/awinterman/anarchoresp/protocol"
	"github.com/awinterman/anarchoresp/protocol/kind"
)

// Collector counts frames moved by protocol.Conn. It implements
// protocol.Observer and is safe for concurrent use by many connections.
type Collector struct {
	registry *prometheus.Registry

	decoded      *prometheus.CounterVec
	encoded      *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	bytesIn      prometheus.Counter
	bytesOut     prometheus.Counter
	connections  prometheus.Gauge
}

var _ protocol.Observer = (*Collector)(nil)

// New creates a Collector registered on its own registry, alongside the Go
// runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resp",
			Name:      "frames_decoded_total",
			Help:      "Top level frames decoded, by type",
		}, []string{"kind"}),
		encoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resp",
			Name:      "frames_encoded_total",
			Help:      "Top level frames encoded, by type",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resp",
			Name:      "decode_errors_total",
			Help:      "Streams dropped because of a framing error, by error code",
		}, []string{"code"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "resp",
			Name:      "bytes_decoded_total",
			Help:      "Bytes consumed by decoded frames",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "resp",
			Name:      "bytes_encoded_total",
			Help:      "Bytes produced by encoded frames",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "resp",
			Name:      "connections_open",
			Help:      "Client connections currently being served",
		}),
	}

	c.registry.MustRegister(
		c.decoded,
		c.encoded,
		c.decodeErrors,
		c.bytesIn,
		c.bytesOut,
		c.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Decoded(k kind.Kind, size int) {
	c.decoded.WithLabelValues(kind.Humanize(byte(k))).Inc()
	c.bytesIn.Add(float64(size))
}

func (c *Collector) Encoded(k kind.Kind, size int) {
	c.encoded.WithLabelValues(kind.Humanize(byte(k))).Inc()
	c.bytesOut.Add(float64(size))
}

// DecodeFailed labels framing errors by their Code; anything else is a
// transport failure.
func (c *Collector) DecodeFailed(err error) {
	code := "Transport"
	var decodeErr *protocol.DecodeError
	if errors.As(err, &decodeErr) {
		code = decodeErr.Code.String()
	}
	c.decodeErrors.WithLabelValues(code).Inc()
}

func (c *Collector) ConnOpened() {
	c.connections.Inc()
}

func (c *Collector) ConnClosed() {
	c.connections.Dec()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
