// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package server:
package server

import (
	"time"

	"github.com/alexflint/go-arg"

	"github.com/awinterman/anarchoresp/protocol"
)

type Config struct {
	Address         string        `arg:"--address" env:"AR_LISTEN_ADDRESS" help:"address to listen on" default:"localhost:36379"`
	MaxBulkLen      int64         `arg:"--proto-max-bulk-len" env:"AR_PROTO_MAX_BULK_LEN" help:"max length of bulk string" default:"0"`
	MaxAggregateLen int64         `arg:"--proto-max-aggregate-len" env:"AR_PROTO_MAX_AGGREGATE_LEN" help:"max element count of an array, map, set or push" default:"0"`
	MaxDepth        int           `arg:"--proto-max-depth" env:"AR_PROTO_MAX_DEPTH" help:"max aggregate nesting" default:"0"`
	MaxLineLen      int           `arg:"--proto-max-line-len" env:"AR_PROTO_MAX_LINE_LEN" help:"max length of a simple string, error or big number" default:"0"`
	IdleTimeout     time.Duration `arg:"--idle-timeout" env:"AR_IDLE_TIMEOUT" help:"close clients idle this long, 0 to never" default:"0s"`

	Upstream string `arg:"--upstream" env:"AR_UPSTREAM" help:"proxy every frame to this RESP server instead of answering locally"`
	PoolSize int32  `arg:"--upstream-pool-size" env:"AR_UPSTREAM_POOL_SIZE" help:"max connections to the upstream" default:"8"`

	MetricsAddress string `arg:"--metrics-address" env:"AR_METRICS_ADDRESS" help:"serve prometheus metrics on this address"`

	KafkaBrokers []string `arg:"--kafka-brokers" env:"AR_KAFKA_BROKERS" help:"capture frames to these kafka brokers"`
	CaptureTopic string   `arg:"--capture-topic" env:"AR_CAPTURE_TOPIC" help:"kafka topic for captured frames" default:"anarchoresp.capture"`
	CaptureDir   string   `arg:"--capture-dir" env:"AR_CAPTURE_DIR" help:"capture frames to a badger database in this directory"`

	LogLevel  string `arg:"--log-level" env:"AR_LOG_LEVEL" help:"trace, debug, info, warn or error" default:"info"`
	LogFormat string `arg:"--log-format" env:"AR_LOG_FORMAT" help:"text or json" default:"text"`
}

// Decoder returns decoder limits; zero values fall back to the protocol defaults.
func (c *Config) Decoder() protocol.Decoder {
	return protocol.Decoder{
		MaxBulkLen:      c.MaxBulkLen,
		MaxAggregateLen: c.MaxAggregateLen,
		MaxDepth:        c.MaxDepth,
		MaxLineLen:      c.MaxLineLen,
	}
}

func (c *Config) Parse() error {
	return arg.Parse(c)
}
