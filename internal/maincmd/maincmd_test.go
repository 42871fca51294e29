package maincmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
)

func runCmd(args ...string) (mainer.ExitCode, string, string) {
	var stdout, stderr bytes.Buffer
	stdio := mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &stdout,
		Stderr: &stderr,
	}
	c := Cmd{BuildVersion: "v1.2.3"}
	code := c.Main(append([]string{binName}, args...), stdio)
	return code, stdout.String(), stderr.String()
}

func TestHelpAndVersion(t *testing.T) {
	code, out, _ := runCmd("-h")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out, "usage: loom")

	code, out, _ = runCmd("--version")
	assert.Equal(t, mainer.Success, code)
	assert.Equal(t, "loom v1.2.3\n", out)
}

func TestInvalidArgs(t *testing.T) {
	cases := []struct {
		args []string
		err  string
	}{
		{nil, "no command specified"},
		{[]string{"boot"}, "unknown command: boot"},
		{[]string{"--headless", "list"}, "list: invalid flag 'headless'"},
		{[]string{"--hz", "-1", "run"}, "run: --hz and --ticks must not be negative"},
	}
	for _, c := range cases {
		code, _, errOut := runCmd(c.args...)
		assert.Equal(t, mainer.InvalidArgs, code, "%v", c.args)
		assert.Contains(t, errOut, c.err, "%v", c.args)
	}
}

func TestList(t *testing.T) {
	code, out, _ := runCmd("list")
	assert.Equal(t, mainer.Success, code)
	for _, name := range []string{"alarm", "condvar", "donation", "joins", "pingpong", "rendezvous"} {
		assert.Contains(t, out, name)
	}
}

func TestRunHeadless(t *testing.T) {
	code, out, errOut := runCmd("--headless", "--hz", "1000", "--scheduler", "priority", "--seed", "5", "run", "donation", "alarm")
	assert.Equal(t, mainer.Success, code, errOut)
	assert.Contains(t, out, "scheduler priority")
	assert.Contains(t, out, "donation: lock holder ran at 5, order [low high medium]")
	assert.Contains(t, out, "alarm: woke in order sleep-500 sleep-1000 sleep-1500 sleep-2000")
	assert.Less(t, strings.Index(out, "== donation =="), strings.Index(out, "== alarm =="))
}

func TestRunRejectsBadConfig(t *testing.T) {
	code, _, errOut := runCmd("--headless", "run", "nope")
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, `run: unknown task "nope"`)

	code, _, errOut = runCmd("--headless", "--scheduler", "lottery", "run")
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, `scheduler: unknown policy "lottery"`)
}
