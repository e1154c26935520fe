package source

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

// Update is the dataset as of the latest batch of appended lines.
type Update struct {
	Dataset  *Dataset
	Appended int
	Replaced int
	Skipped  int
}

// FollowOptions configures Follow.
type FollowOptions struct {
	Options
	// Poll watches the file by polling instead of filesystem notifications.
	Poll bool
	// FromEnd ignores the file's existing content.
	FromEnd bool
}

// Follow tails an NDJSON file and emits the whole dataset each time new lines
// arrive. Lines that are already waiting are coalesced into one update.
// A line whose explicit id was seen before replaces that row. Malformed lines
// are skipped. The channel is closed when ctx is done.
func Follow(ctx context.Context, path string, opts FollowOptions, logger *zap.Logger) (<-chan Update, error) {
	expanded, format, err := Resolve(path, opts.Options)
	if err != nil {
		return nil, err
	}
	if format != FormatNDJSON {
		return nil, fmt.Errorf("%w: follow needs ndjson, got %s", ErrUnsupportedFormat, format)
	}

	var location *tail.SeekInfo
	if opts.FromEnd {
		location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(expanded, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      opts.Poll,
		Location:  location,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to tail source: %w", err)
	}

	f := &follower{
		logger:  logger.Named("follow").With(zap.String("path", expanded)),
		builder: NewBuilder(opts.Options),
		tail:    t,
		out:     make(chan Update, 1),
	}
	go f.run(ctx)
	return f.out, nil
}

type follower struct {
	logger  *zap.Logger
	builder *Builder
	tail    *tail.Tail
	out     chan Update
	lineNo  int
	pending Update
}

func (f *follower) run(ctx context.Context) {
	defer close(f.out)
	defer func() {
		f.tail.Stop()
		f.tail.Cleanup()
	}()

	f.logger.Debug("Following source.")
	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("Stopped following source.", zap.Error(ctx.Err()))
			return
		case line, ok := <-f.tail.Lines:
			if !ok {
				f.logger.Info("Source tail closed.")
				return
			}
			f.consume(line)
			if open := f.drain(); !open {
				f.emit(ctx)
				return
			}
			if !f.emit(ctx) {
				return
			}
		}
	}
}

// drain consumes lines already queued without blocking. It reports false
// once the tail has closed.
func (f *follower) drain() bool {
	for {
		select {
		case line, ok := <-f.tail.Lines:
			if !ok {
				return false
			}
			f.consume(line)
		default:
			return true
		}
	}
}

func (f *follower) consume(line *tail.Line) {
	f.lineNo++
	if line.Err != nil {
		f.logger.Warn("Error reading from source.", zap.Error(line.Err))
		return
	}
	if f.builder.Full() {
		f.pending.Skipped++
		return
	}
	keys, values, ok, err := parseLine([]byte(line.Text))
	if !ok && err == nil {
		return
	}
	if err != nil {
		f.pending.Skipped++
		f.logger.Warn("Skipping malformed line.", zap.Int("line", f.lineNo), zap.Error(err))
		return
	}
	replaced, err := f.builder.Upsert(keys, values)
	switch {
	case err != nil:
		f.pending.Skipped++
		f.logger.Warn("Skipping row.", zap.Int("line", f.lineNo), zap.Error(err))
	case replaced:
		f.pending.Replaced++
	default:
		f.pending.Appended++
	}
}

// emit publishes the pending update. It reports false when ctx ended first.
func (f *follower) emit(ctx context.Context) bool {
	if f.pending.Appended == 0 && f.pending.Replaced == 0 {
		return true
	}
	u := f.pending
	u.Dataset = f.builder.Snapshot()
	f.pending = Update{}
	select {
	case f.out <- u:
		return true
	case <-ctx.Done():
		return false
	}
}
