package tasks

import (
	"errors"
	"fmt"
	"strings"

	"loom/loomos/kernel"
)

func init() {
	Register(Task{
		Name:        "alarm",
		Description: "Threads sleep for different durations and must wake in deadline order.",
		Run:         runAlarm,
	})
}

var alarmDurations = []int64{1500, 500, 1000, 2000}

func runAlarm(env *Env) error {
	k := env.Kernel
	if env.Alarm == nil {
		return errors.New("no alarm installed")
	}
	timer := k.Machine().Timer

	var woke []string
	late := 0
	var sleepers []*kernel.Thread
	for _, d := range alarmDurations {
		d := d
		name := fmt.Sprintf("sleep-%d", d)
		sleepers = append(sleepers, k.Fork(name, func() {
			deadline := timer.Time() + uint64(d)
			env.Alarm.WaitUntil(d)
			if timer.Time() <= deadline {
				late++
			}
			woke = append(woke, name)
		}))
	}
	joinAll(sleepers)

	if late > 0 {
		return fmt.Errorf("%d threads woke before their deadline", late)
	}
	want := []string{"sleep-500", "sleep-1000", "sleep-1500", "sleep-2000"}
	if got := strings.Join(woke, " "); got != strings.Join(want, " ") {
		return fmt.Errorf("woke in order %s", got)
	}
	env.Printf("alarm: woke in order %s", strings.Join(woke, " "))
	return nil
}
