package commands

import (
	"context"
	"fmt"
	"strings"
)

type ExecCmd struct {
	DatabaseFlags
	Org  string   `help:"Organization ID or slug to run against." required:""`
	SQL  string   `arg:"" help:"Parameterized SQL statement ($1, $2, ...)."`
	Args []string `arg:"" optional:"" help:"Positional statement parameters."`
}

func (c *ExecCmd) Run(ctx context.Context, globals *Globals) error {
	setupLogging(globals)

	pool, shared, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	router, auditor, err := c.router(pool, shared)
	if err != nil {
		return err
	}
	defer auditor.Stop()

	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		args[i] = a
	}

	result, err := router.Query(ctx, operatorCaller(), parseRef(c.Org), c.SQL, args...)
	if err != nil {
		return err
	}

	printResult(result.Columns, result.Rows)
	return nil
}

func printResult(columns []string, rows [][]any) {
	fmt.Println(strings.Join(columns, "\t"))
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprint(v)
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
}
