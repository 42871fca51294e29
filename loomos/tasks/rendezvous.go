package tasks

import (
	"fmt"

	"loom/loomos/kernel"
)

func init() {
	Register(Task{
		Name:        "rendezvous",
		Description: "Many speakers and listeners share one communicator; every word arrives exactly once.",
		Run:         runRendezvous,
	})
}

const (
	rendezvousSpeakers  = 4
	rendezvousListeners = 6
	rendezvousWords     = 12
)

func runRendezvous(env *Env) error {
	k := env.Kernel
	c := kernel.NewCommunicator[int](k)

	heard := make(map[int]int)
	var threads []*kernel.Thread
	for i := 0; i < rendezvousSpeakers; i++ {
		i := i
		threads = append(threads, k.Fork(fmt.Sprintf("speaker-%d", i), func() {
			for w := i; w < rendezvousWords; w += rendezvousSpeakers {
				c.Speak(w)
			}
		}))
	}
	for i := 0; i < rendezvousListeners; i++ {
		threads = append(threads, k.Fork(fmt.Sprintf("listener-%d", i), func() {
			for j := 0; j < rendezvousWords/rendezvousListeners; j++ {
				heard[c.Listen()]++
			}
		}))
	}
	joinAll(threads)

	for w := 0; w < rendezvousWords; w++ {
		if n := heard[w]; n != 1 {
			return fmt.Errorf("word %d heard %d times", w, n)
		}
	}
	env.Printf("rendezvous: %d words delivered once each", rendezvousWords)
	return nil
}
