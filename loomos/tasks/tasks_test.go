package tasks

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kylelemons/godebug/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loom/hal"
	"loom/loomos/kernel"
)

var testUpdateTranscripts = flag.Bool("test.update-transcripts", false, "If set, replace expected transcripts with actual results.")

type transcript struct {
	lines []string
}

func (t *transcript) WriteLineString(s string) { t.lines = append(t.lines, s) }
func (t *transcript) WriteLineBytes(b []byte)  { t.lines = append(t.lines, string(b)) }

func bootEnv(t *testing.T, sched string, seed int64) (*Env, *transcript) {
	t.Helper()

	m := hal.NewMachine(hal.Config{
		RandomizeTimer: true,
		Seed:           seed,
		MaxTicks:       50_000_000,
	}, nil)
	s, err := kernel.NewScheduler(sched, m.Interrupt)
	require.NoError(t, err)

	k := kernel.New(m, s)
	alarm := kernel.NewAlarm(k)
	m.Interrupt.Enable()
	t.Cleanup(k.Terminate)

	out := &transcript{}
	return &Env{Kernel: k, Alarm: alarm, Out: out}, out
}

func TestRegistry(t *testing.T) {
	want := []string{"alarm", "condvar", "donation", "joins", "pingpong", "rendezvous"}
	assert.Equal(t, want, Names())

	for _, task := range All() {
		assert.NotEmpty(t, task.Description, task.Name)
	}
	assert.Panics(t, func() { Register(Task{Name: "alarm"}) })

	env, _ := bootEnv(t, kernel.SchedulerRoundRobin, 1)
	assert.EqualError(t, Run(env, "nope"), `unknown task "nope"`)
}

func TestTranscripts(t *testing.T) {
	for _, sched := range []string{kernel.SchedulerRoundRobin, kernel.SchedulerPriority} {
		for _, seed := range []int64{1, 7, 42} {
			sched, seed := sched, seed
			t.Run(fmt.Sprintf("%s/seed=%d", sched, seed), func(t *testing.T) {
				env, out := bootEnv(t, sched, seed)
				require.NoError(t, Run(env, Names()...))

				got := strings.Join(out.lines, "\n") + "\n"
				wantFile := filepath.Join("testdata", sched+".want")
				if *testUpdateTranscripts {
					require.NoError(t, os.WriteFile(wantFile, []byte(got), 0600))
					return
				}
				want, err := os.ReadFile(wantFile)
				require.NoError(t, err)
				if patch := diff.Diff(string(want), got); patch != "" {
					t.Errorf("transcript differs from %s:\n%s", wantFile, patch)
				}
			})
		}
	}
}

func TestDonationNeedsPriorityScheduler(t *testing.T) {
	env, out := bootEnv(t, kernel.SchedulerRoundRobin, 3)
	require.NoError(t, runDonation(env))
	assert.Equal(t, []string{"donation: skipped, needs the priority scheduler"}, out.lines)
}

func TestAlarmTaskNeedsAlarm(t *testing.T) {
	env, _ := bootEnv(t, kernel.SchedulerRoundRobin, 3)
	env.Alarm = nil
	assert.EqualError(t, runAlarm(env), "no alarm installed")
}
