package kernel

import (
	"fmt"
	"strings"
)

// Debug flag characters.
const (
	dbgThread    = 't'
	dbgAlarm     = 'a'
	dbgCondition = 'c'
	dbgComm      = 's'
	dbgPriority  = 'p'
	dbgLock      = 'l'
	dbgAll       = '+'
)

type debugFlags string

func (d debugFlags) test(flag byte) bool {
	return strings.IndexByte(string(d), dbgAll) >= 0 || strings.IndexByte(string(d), flag) >= 0
}

func (k *Kernel) debugf(flag byte, format string, args ...any) {
	if !k.dbg.test(flag) {
		return
	}
	k.log.WriteLineString(fmt.Sprintf(format, args...))
}
