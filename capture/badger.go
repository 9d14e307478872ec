// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package capture:
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
)

var (
	framePrefix  = []byte("f:")
	streamPrefix = []byte("s:")

	errStop = errors.New("stop")
)

// BadgerStore keeps captured frames on local disk. Frames are keyed by
// f:<xxhash(stream)><seq>, both big endian, so one stream iterates in sequence
// order.
type BadgerStore struct {
	DB  *badger.DB
	Log *slog.Logger
}

// OpenBadger opens the store in dir, or in memory when dir is empty.
func OpenBadger(dir string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.With("comp", "capture")
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}
	return &BadgerStore{DB: db, Log: logger}, nil
}

func streamHash(stream string) []byte {
	return binary.BigEndian.AppendUint64(nil, xxhash.Sum64String(stream))
}

func frameKey(stream string, seq uint64) []byte {
	key := append(append([]byte{}, framePrefix...), streamHash(stream)...)
	return binary.BigEndian.AppendUint64(key, seq)
}

func streamKey(stream string) []byte {
	return append(append([]byte{}, streamPrefix...), streamHash(stream)...)
}

func (b *BadgerStore) Capture(_ context.Context, f Frame) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		if err := txn.Set(frameKey(f.Stream, f.Seq), f.Data); err != nil {
			return err
		}
		return txn.Set(streamKey(f.Stream), []byte(f.Stream))
	})
}

// Streams lists the names of every stream with captured frames.
func (b *BadgerStore) Streams() ([]string, error) {
	var streams []string
	err := b.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = streamPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			streams = append(streams, string(value))
		}
		return nil
	})
	return streams, err
}

// Frames iterates the frames of stream in sequence order.
func (b *BadgerStore) Frames(stream string) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		prefix := append(append([]byte{}, framePrefix...), streamHash(stream)...)

		err := b.DB.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				value, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				f := Frame{
					Stream: stream,
					Seq:    binary.BigEndian.Uint64(item.Key()[len(prefix):]),
					Data:   value,
				}
				if !yield(f, nil) {
					return errStop
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(Frame{}, err)
		}
	}
}

func (b *BadgerStore) Close() error {
	if err := b.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
