package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"loom/hal"
	"loom/loomos/kernel"
)

func boot(t *testing.T, tr *Tracer, m *hal.Machine) *kernel.Kernel {
	t.Helper()

	s, err := kernel.NewScheduler(kernel.SchedulerRoundRobin, m.Interrupt)
	require.NoError(t, err)
	k := kernel.New(m, s, kernel.WithObserver(tr))
	m.Interrupt.Enable()
	t.Cleanup(k.Terminate)
	return k
}

func TestThreadSpan(t *testing.T) {
	m := hal.NewMachine(hal.Config{MaxTicks: 1_000_000}, nil)
	exp := tracetest.NewInMemoryExporter()
	tr, err := NewWithExporter(exp, "test", m.Interrupt.Time)
	require.NoError(t, err)
	require.NotEmpty(t, tr.BootID)

	k := boot(t, tr, m)
	k.Fork("child", func() { k.Yield() }).Join()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "thread child", span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	var events []string
	for _, e := range span.Events {
		events = append(events, e.Name)
	}
	assert.Equal(t, []string{"ready", "running", "ready", "running", "finished"}, events)
	assert.True(t, span.Parent.IsValid())
}

func TestShutdownFlushesOpenSpans(t *testing.T) {
	var buf bytes.Buffer
	m := hal.NewMachine(hal.Config{MaxTicks: 1_000_000}, nil)
	tr, err := New(&buf, "test", m.Interrupt.Time)
	require.NoError(t, err)

	k := boot(t, tr, m)
	k.Fork("child", func() {}).Join()
	require.NoError(t, tr.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"thread child"`)
	assert.Contains(t, out, `"Name":"thread main"`)
	assert.Contains(t, out, `"Name":"thread idle"`)
	assert.Contains(t, out, `"Name":"boot"`)
	assert.Contains(t, out, tr.BootID)
}
