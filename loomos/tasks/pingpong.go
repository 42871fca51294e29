package tasks

import (
	"fmt"

	"loom/loomos/kernel"
)

func init() {
	Register(Task{
		Name:        "pingpong",
		Description: "Two threads volley a counter through a pair of communicators.",
		Run:         runPingPong,
	})
}

const pingPongRounds = 10

func runPingPong(env *Env) error {
	k := env.Kernel
	ping := kernel.NewCommunicator[int](k)
	pong := kernel.NewCommunicator[int](k)

	var bad, last int
	pinger := k.Fork("ping", func() {
		for i := 0; i < pingPongRounds; i++ {
			ping.Speak(i)
			if last = pong.Listen(); last != i+1 {
				bad++
			}
		}
	})
	ponger := k.Fork("pong", func() {
		for i := 0; i < pingPongRounds; i++ {
			pong.Speak(ping.Listen() + 1)
		}
	})
	joinAll([]*kernel.Thread{pinger, ponger})

	if bad > 0 {
		return fmt.Errorf("%d of %d replies were wrong", bad, pingPongRounds)
	}
	env.Printf("pingpong: %d rounds, last reply %d", pingPongRounds, last)
	return nil
}
