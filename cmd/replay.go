package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/vgrid/api/schemas"
	"github.com/xkilldash9x/vgrid/internal/config"
	"github.com/xkilldash9x/vgrid/internal/engine"
	"github.com/xkilldash9x/vgrid/internal/observability"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
	"github.com/xkilldash9x/vgrid/internal/source"
)

// replayEpoch is the virtual clock's starting point, fixed so replays are
// reproducible byte for byte.
var replayEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type replayFlags struct {
	script   string
	realtime bool
	rate     float64
	strict   bool
	final    bool
}

func newReplayCmd(provider datasetProvider) *cobra.Command {
	var flags replayFlags

	replayCmd := &cobra.Command{
		Use:   "replay [dataset] --script events.json",
		Short: "Drive the grid with a scripted event stream",
		Long: `Replays host events (scroll, sort, filter, select, column resize, wait, render)
against a dataset and prints every engine notification as one JSON object per line.
By default time is virtual: wait events advance the clock instantly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			events, err := readScript(flags.script, cmd.InOrStdin())
			if err != nil {
				return err
			}
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runReplay(ctx, cmd.OutOrStdout(), cfg, provider, path, events, flags, observability.Named("replay"))
		},
	}

	replayCmd.Flags().StringVarP(&flags.script, "script", "s", "", "event script: a JSON array, or NDJSON for .ndjson/.jsonl files; - reads stdin (required)")
	_ = replayCmd.MarkFlagRequired("script")
	replayCmd.Flags().BoolVar(&flags.realtime, "realtime", false, "use the wall clock; wait events sleep")
	replayCmd.Flags().Float64Var(&flags.rate, "rate", 0, "maximum events per second (0 is unpaced)")
	replayCmd.Flags().BoolVar(&flags.strict, "strict", false, "stop at the first rejected event")
	replayCmd.Flags().BoolVar(&flags.final, "final-window", true, "emit the settled window after the last event")
	return replayCmd
}

// readScript loads events from path. A JSON array is expected unless the
// file extension marks it as NDJSON.
func readScript(path string, stdin io.Reader) ([]schemas.Event, error) {
	if path == "" {
		return nil, fmt.Errorf("--script is required")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		if path, err = config.ExpandPath(path); err == nil {
			data, err = os.ReadFile(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	trimmed := bytes.TrimSpace(data)
	if ext == ".ndjson" || ext == ".jsonl" || (len(trimmed) > 0 && trimmed[0] == '{') {
		return decodeEventLines(trimmed)
	}
	var events []schemas.Event
	if err := jsoniter.Unmarshal(trimmed, &events); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return events, nil
}

func decodeEventLines(data []byte) ([]schemas.Event, error) {
	var events []schemas.Event
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var ev schemas.Event
		if err := jsoniter.Unmarshal(text, &ev); err != nil {
			return nil, fmt.Errorf("script line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	return events, sc.Err()
}

// notifier serializes engine hook invocations as NDJSON notifications.
type notifier struct {
	enc   *jsoniter.Encoder
	clock func() time.Time
	seq   int
	err   error
}

func newNotifier(out io.Writer, clock func() time.Time) *notifier {
	return &notifier{
		enc:   jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out),
		clock: clock,
	}
}

func (n *notifier) emit(note schemas.Notification) {
	if n.err != nil {
		return
	}
	n.seq++
	note.Seq = n.seq
	note.Timestamp = n.clock()
	n.err = n.enc.Encode(note)
}

func (n *notifier) hooks() engine.Hooks[source.Record] {
	return engine.Hooks[source.Record]{
		OnSort: func(column string, dir pipeline.Direction) {
			n.emit(schemas.Notification{Type: schemas.NotifySort, Column: column, Direction: string(dir)})
		},
		OnFilter: func(fs pipeline.FilterState) {
			n.emit(schemas.Notification{Type: schemas.NotifyFilter, Filters: fs.Describe()})
		},
		OnRowSelect: func(rows []source.Record) {
			ids := make([]string, len(rows))
			for i, r := range rows {
				ids[i] = r.ID
			}
			n.emit(schemas.Notification{Type: schemas.NotifySelect, Selected: ids})
		},
		OnScroll: func(top, left float64) {
			n.emit(schemas.Notification{Type: schemas.NotifyScroll, ScrollTop: top, ScrollLeft: left})
		},
		OnView: func(u engine.ViewUpdate) {
			note := schemas.Notification{
				Type:       schemas.NotifyView,
				Status:     string(u.Status),
				Generation: u.Generation,
				Rows:       u.Rows,
				Total:      u.Total,
				Background: u.Background,
			}
			if u.Err != nil {
				note.Error = u.Err.Error()
			}
			n.emit(note)
		},
	}
}

func (n *notifier) window(w engine.Window[source.Record, string]) {
	n.emit(schemas.Notification{Type: schemas.NotifyWindow, Window: engine.Snapshot(w, identity)})
}

func (n *notifier) rejected(ev schemas.Event, err error) {
	n.emit(schemas.Notification{Type: schemas.NotifyError, Column: ev.Column, Error: fmt.Sprintf("%s: %v", ev.Type, err)})
}

func runReplay(ctx context.Context, out io.Writer, cfg config.Interface, provider datasetProvider, path string, events []schemas.Event, flags replayFlags, logger *zap.Logger) error {
	ds, err := provider.Load(ctx, cfg, path, logger)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	var loop *engine.Loop[source.Record, string]
	clock := func() time.Time {
		if loop != nil {
			return loop.Now()
		}
		if flags.realtime {
			return time.Now()
		}
		return replayEpoch
	}
	note := newNotifier(out, clock)

	g, err := newGrid(cfg, ds, note.hooks(), logger)
	if err != nil {
		return err
	}
	defer g.Close()

	loopOpts := []engine.LoopOption[source.Record, string]{
		engine.WithFrameInterval[source.Record, string](cfg.Grid().FrameInterval),
		engine.WithRender(note.window),
	}
	if !flags.realtime {
		loopOpts = append(loopOpts, engine.WithVirtualClock[source.Record, string](replayEpoch))
	}
	loop = engine.NewLoop(g, parseID, loopOpts...)

	var limiter *rate.Limiter
	if flags.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(flags.rate), 1)
	}

	rejected := 0
	for i, ev := range events {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := loop.Dispatch(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rejected++
			note.rejected(ev, err)
			if flags.strict {
				return fmt.Errorf("event %d (%s) rejected: %w", i, ev.Type, err)
			}
		}
		if note.err != nil {
			return fmt.Errorf("failed to write notification: %w", note.err)
		}
	}

	if err := g.Settle(ctx); err != nil {
		return err
	}
	g.Frame(loop.Now())
	if flags.final {
		note.window(g.Window())
	}
	logger.Debug("Replay finished.", zap.Int("events", len(events)), zap.Int("rejected", rejected), zap.Int("notifications", note.seq))
	return note.err
}
