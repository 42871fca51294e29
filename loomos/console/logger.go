package console

// Logger is a hal.Logger that queues lines on a Ring.
type Logger struct {
	r     *Ring
	block bool
}

// NewLogger returns a logger feeding r. With block set, writers wait for
// the consumer instead of dropping lines when r is full.
func NewLogger(r *Ring, block bool) *Logger {
	return &Logger{r: r, block: block}
}

func (l *Logger) WriteLineString(s string) {
	if l.block {
		l.r.Push(s)
		return
	}
	l.r.PushOrDrop(s)
}

func (l *Logger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }
