package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/issue-hunter/internal/agent"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/models"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (models.RunReport, error) {
	r.calls.Add(1)
	return models.RunReport{}, r.err
}

func TestNew_RejectsBadSpec(t *testing.T) {
	_, err := New("every tuesday", &countingRunner{}, nil)
	assert.Error(t, err)

	_, err = New("*/5 * * * *", nil, nil)
	assert.Error(t, err)
}

func TestTick_RunsAndToleratesInProgress(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("@hourly", runner, logger.NewTest(t))
	require.NoError(t, err)

	s.tick()
	assert.Equal(t, int32(1), runner.calls.Load())

	runner.err = agent.ErrRunInProgress
	s.tick()
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestStop_PreventsFurtherTicks(t *testing.T) {
	runner := &countingRunner{}
	s, err := New("*/5 * * * *", runner, logger.NewTest(t))
	require.NoError(t, err)

	s.Start()
	assert.True(t, s.Next().After(time.Now().Add(-time.Second)))
	s.Stop()

	s.tick()
	assert.Zero(t, runner.calls.Load())
}

type logEntry struct {
	level  string
	msg    string
	fields []logger.Field
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *recordingLogger) add(level, msg string, fields []logger.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (r *recordingLogger) Debug(msg string, f ...logger.Field) { r.add("debug", msg, f) }
func (r *recordingLogger) Info(msg string, f ...logger.Field)  { r.add("info", msg, f) }
func (r *recordingLogger) Warn(msg string, f ...logger.Field)  { r.add("warn", msg, f) }
func (r *recordingLogger) Error(msg string, f ...logger.Field) { r.add("error", msg, f) }
func (r *recordingLogger) With(...logger.Field) logger.Logger  { return r }
func (r *recordingLogger) Sync() error                         { return nil }

func TestCronLogger_RecoveredPanicReachesLogger(t *testing.T) {
	rec := &recordingLogger{}
	job := cron.NewChain(cron.Recover(cronLogger{log: rec})).Then(cron.FuncJob(func() {
		panic("search exploded")
	}))

	assert.NotPanics(t, job.Run)

	require.Len(t, rec.entries, 1)
	got := rec.entries[0]
	assert.Equal(t, "error", got.level)
	assert.Equal(t, "cron: panic", got.msg)

	var errText string
	for _, f := range got.fields {
		if f.Key == "error" {
			errText = fmt.Sprint(f.Interface)
		}
	}
	assert.Contains(t, errText, "search exploded")
}

func TestCronLogger_Fields(t *testing.T) {
	got := fields([]any{"entry", 3, "next", "soon", "dangling"})
	require.Len(t, got, 2)
	assert.Equal(t, "entry", got[0].Key)
	assert.Equal(t, "next", got[1].Key)
}
