package kernel

import "github.com/dolthub/swiss"

// Communicator is a synchronous rendezvous: a speaker and a listener pair
// up, exchange one word, and both return. Each word is delivered to exactly
// one listener, even when many speakers and listeners are waiting.
type Communicator[T any] struct {
	k         *Kernel
	speakers  ThreadQueue
	listeners ThreadQueue
	delivered *swiss.Map[ThreadID, T]
}

func NewCommunicator[T any](k *Kernel) *Communicator[T] {
	status := k.intr.Disable()
	c := &Communicator[T]{
		k:         k,
		speakers:  k.sched.NewThreadQueue(false),
		listeners: k.sched.NewThreadQueue(false),
		delivered: swiss.NewMap[ThreadID, T](8),
	}
	k.intr.Restore(status)
	return c
}

// Speak blocks until a listener is waiting, hands it word, and returns.
func (c *Communicator[T]) Speak(word T) {
	k := c.k

	status := k.intr.Disable()
	cur := k.current

	listener := c.listeners.NextThread()
	for listener == nil {
		k.debugf(dbgComm, "%s waiting for a listener", cur)
		c.speakers.WaitForAccess(cur)
		k.Sleep()
		listener = c.listeners.NextThread()
	}

	k.debugf(dbgComm, "%s speaks to %s", cur, listener)
	c.delivered.Put(listener.id, word)
	listener.Ready()

	k.intr.Restore(status)
}

// Listen blocks until a speaker hands over a word and returns it.
func (c *Communicator[T]) Listen() T {
	k := c.k

	status := k.intr.Disable()
	cur := k.current

	if speaker := c.speakers.NextThread(); speaker != nil {
		speaker.Ready()
	}
	k.debugf(dbgComm, "%s waiting for a speaker", cur)
	c.listeners.WaitForAccess(cur)
	k.Sleep()

	word, ok := c.delivered.Get(cur.id)
	assertf(ok, "listener %s woke without a word", cur)
	c.delivered.Delete(cur.id)

	k.intr.Restore(status)
	return word
}
