// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package capture:
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"iter"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

const seqHeader = "resp-seq"

// KafkaSink produces each frame as one record keyed by its stream, so the
// frames of a connection stay ordered within a partition.
type KafkaSink struct {
	Client *kgo.Client
	Topic  string
	Log    *slog.Logger
}

func NewKafkaSink(clientID string, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(kgo.ClientID(clientID), kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(), kgo.DefaultProduceTopic(topic))
	if err != nil {
		return nil, err
	}

	return &KafkaSink{Client: client, Topic: topic, Log: slog.With("comp", "kafka-sink")}, nil
}

func (k *KafkaSink) Capture(ctx context.Context, f Frame) error {
	record := frameRecord(f)
	record.Topic = k.Topic

	if err := k.Client.ProduceSync(ctx, record).FirstErr(); err != nil {
		k.Log.Warn("produce failed", "stream", f.Stream, "seq", f.Seq, "error", err)
		return err
	}
	return nil
}

func (k *KafkaSink) Close() {
	k.Client.Close()
}

// KafkaSource reads captured frames back from a topic, oldest first.
type KafkaSource struct {
	Client *kgo.Client
	Log    *slog.Logger
}

func NewKafkaSource(clientID string, brokers []string, topic string) (*KafkaSource, error) {
	client, err := kgo.NewClient(kgo.ClientID(clientID), kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic), kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	if err != nil {
		return nil, err
	}

	return &KafkaSource{Client: client, Log: slog.With("comp", "kafka-source")}, nil
}

// Frames polls until ctx is done or a fetch fails.
func (k *KafkaSource) Frames(ctx context.Context) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for ctx.Err() == nil {
			fetches := k.Client.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return
			}

			var err error
			for _, e := range fetches.Errors() {
				if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
					continue
				}
				err = errors.Join(err, e.Err)
			}
			if err != nil {
				yield(Frame{}, err)
				return
			}

			records := fetches.RecordIter()
			for !records.Done() {
				if !yield(recordFrame(records.Next()), nil) {
					return
				}
			}
		}
	}
}

func (k *KafkaSource) Close() {
	k.Client.Close()
}

func frameRecord(f Frame) *kgo.Record {
	seq := binary.BigEndian.AppendUint64(nil, f.Seq)
	return &kgo.Record{
		Key:     []byte(f.Stream),
		Value:   f.Data,
		Headers: []kgo.RecordHeader{{Key: seqHeader, Value: seq}},
	}
}

// recordFrame falls back to the record offset for records without a sequence
// header.
func recordFrame(r *kgo.Record) Frame {
	f := Frame{Stream: string(r.Key), Seq: uint64(r.Offset) + 1, Data: r.Value}
	for _, h := range r.Headers {
		if h.Key == seqHeader && len(h.Value) == 8 {
			f.Seq = binary.BigEndian.Uint64(h.Value)
		}
	}
	return f
}
