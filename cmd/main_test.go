// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/config"
	"github.com/xkilldash9x/vgrid/internal/observability"
	"github.com/xkilldash9x/vgrid/internal/source"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(observability.ResetForTest)
}

// memoryProvider serves a fixed dataset and records the requested paths.
type memoryProvider struct {
	mu    sync.Mutex
	ds    *source.Dataset
	err   error
	paths []string
}

func (m *memoryProvider) Load(_ context.Context, _ config.Interface, path string, _ *zap.Logger) (*source.Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	if m.err != nil {
		return nil, m.err
	}
	return m.ds, nil
}

func record(id int64, name string, age int64) source.Record {
	return source.Record{
		ID:     strconv.FormatInt(id, 10),
		Values: map[string]any{"id": id, "name": name, "age": age},
	}
}

func peopleDataset() *source.Dataset {
	return &source.Dataset{
		Fields: []string{"id", "name", "age"},
		Records: []source.Record{
			record(1, "alice", 30),
			record(2, "bob", 40),
			record(3, "alicia", 50),
			record(4, "carol", 20),
		},
	}
}

// executeCommand runs the command tree against provider and returns its stdout.
func executeCommand(t *testing.T, provider datasetProvider, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)
	root := newRootCmd(provider)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

var errNoDataset = errors.New("no dataset")
