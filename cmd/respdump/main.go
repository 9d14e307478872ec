// respdump prints the RESP frames in a file, a badger capture or a kafka
// capture topic, one per line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/davecgh/go-spew/spew"

	"github.com/awinterman/anarchoresp/capture"
	"github.com/awinterman/anarchoresp/protocol"
)

type Args struct {
	Path   string `arg:"positional" help:"RESP file to decode, - for stdin"`
	Format string `arg:"--format" help:"text, spew, raw, or wire to replay the exact bytes" default:"text"`

	Badger string `arg:"--badger" help:"read frames from the badger capture in this directory"`
	Stream string `arg:"--stream" help:"only dump this captured stream"`

	KafkaBrokers []string      `arg:"--kafka-brokers" env:"AR_KAFKA_BROKERS" help:"read frames from a kafka capture topic"`
	Topic        string        `arg:"--topic" env:"AR_CAPTURE_TOPIC" default:"anarchoresp.capture"`
	Wait         time.Duration `arg:"--wait" help:"how long to poll kafka for frames" default:"5s"`

	MaxBulkLen int64 `arg:"--proto-max-bulk-len" default:"0"`
}

func main() {
	var args Args
	arg.MustParse(&args)

	if err := run(context.Background(), args, os.Stdout); err != nil {
		slog.Error("respdump failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args Args, out io.Writer) error {
	p, err := newPrinter(out, args.Format)
	if err != nil {
		return err
	}

	switch {
	case args.Badger != "":
		return dumpBadger(args, p)
	case len(args.KafkaBrokers) > 0:
		ctx, cancel := context.WithTimeout(ctx, args.Wait)
		defer cancel()
		return dumpKafka(ctx, args, p)
	case args.Path == "" || args.Path == "-":
		return dumpStream(os.Stdin, args, p)
	default:
		f, err := os.Open(args.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		return dumpStream(f, args, p)
	}
}

func decoder(args Args) protocol.Decoder {
	return protocol.Decoder{MaxBulkLen: args.MaxBulkLen}
}

// dumpStream reports decode errors by their offset in the whole stream.
func dumpStream(r io.Reader, args Args, p *printer) error {
	conn := protocol.NewReader(r, protocol.ConnOptions{Decoder: decoder(args)})

	offset := 0
	for {
		msg, raw, err := conn.ReadRaw()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				return fmt.Errorf("frame %d at offset %d: %w", p.count+1, offset+decodeErr.Offset, err)
			}
			return fmt.Errorf("frame %d at offset %d: %w", p.count+1, offset, err)
		}
		p.print("", msg, raw)
		offset += len(raw)
	}
}

func dumpBadger(args Args, p *printer) error {
	store, err := capture.OpenBadger(args.Badger, slog.With("comp", "capture"))
	if err != nil {
		return err
	}
	defer store.Close()

	streams := []string{args.Stream}
	if args.Stream == "" {
		if streams, err = store.Streams(); err != nil {
			return err
		}
	}

	d := decoder(args)
	for _, stream := range streams {
		if p.format == "wire" {
			if err := capture.Replay(d, store.Frames(stream), p.out); err != nil {
				return err
			}
			continue
		}
		for f, err := range store.Frames(stream) {
			if err != nil {
				return err
			}
			if err := p.frame(d, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func dumpKafka(ctx context.Context, args Args, p *printer) error {
	source, err := capture.NewKafkaSource("respdump", args.KafkaBrokers, args.Topic)
	if err != nil {
		return err
	}
	defer source.Close()

	d := decoder(args)
	if p.format == "wire" {
		return capture.Replay(d, source.Frames(ctx), p.out)
	}
	for f, err := range source.Frames(ctx) {
		if err != nil {
			return err
		}
		if err := p.frame(d, f); err != nil {
			return err
		}
	}
	return nil
}

type printer struct {
	out    io.Writer
	format string
	count  int
	spew   *spew.ConfigState
}

func newPrinter(out io.Writer, format string) (*printer, error) {
	switch format {
	case "text", "spew", "raw", "wire":
	default:
		return nil, fmt.Errorf("unknown format %q: want text, spew, raw or wire", format)
	}
	return &printer{
		out:    out,
		format: format,
		spew:   &spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true, DisableMethods: true},
	}, nil
}

// frame prints one captured frame, which must hold exactly one message.
func (p *printer) frame(d protocol.Decoder, f capture.Frame) error {
	msg, n, err := d.Decode(f.Data)
	if err == nil && n != len(f.Data) {
		err = fmt.Errorf("%d trailing bytes", len(f.Data)-n)
	}
	if err != nil {
		return fmt.Errorf("stream %s seq %d: %w", f.Stream, f.Seq, err)
	}
	p.print(f.Stream+"#"+strconv.FormatUint(f.Seq, 10)+" ", msg, f.Data)
	return nil
}

func (p *printer) print(prefix string, msg protocol.Message, raw []byte) {
	p.count++
	switch p.format {
	case "spew":
		fmt.Fprintf(p.out, "%s%s", prefix, p.spew.Sdump(msg))
	case "raw":
		fmt.Fprintf(p.out, "%s%s\n", prefix, strconv.Quote(string(raw)))
	case "wire":
		_, _ = p.out.Write(raw)
	default:
		fmt.Fprintf(p.out, "%s%s\n", prefix, msg)
	}
}
