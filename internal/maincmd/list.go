package maincmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/mna/mainer"

	"loom/loomos/tasks"
)

func (c *Cmd) List(ctx context.Context, stdio mainer.Stdio, args []string) error {
	if len(args) > 0 {
		return printError(stdio, fmt.Errorf("list: unexpected arguments %v", args))
	}

	w := tabwriter.NewWriter(stdio.Stdout, 0, 8, 2, ' ', 0)
	for _, t := range tasks.All() {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
	}
	return printError(stdio, w.Flush())
}
