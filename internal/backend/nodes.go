package backend

import (
	"context"
	"os"
	"strings"

	"github.com/specialistvlad/benchgrid/internal/shell"
)

const slurmHostnames = "scontrol show hostnames"

type nodeSource func(ctx context.Context) ([]string, error)

func localNodes(context.Context) ([]string, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return []string{host}, nil
}

func staticNodes(nodes []string) nodeSource {
	return func(context.Context) ([]string, error) {
		return append([]string(nil), nodes...), nil
	}
}

// commandLines runs script and takes one node per non-empty output line.
func commandLines(script string) nodeSource {
	return func(ctx context.Context) ([]string, error) {
		out, err := shell.Output(ctx, shell.Command{Script: script})
		if err != nil {
			return nil, err
		}
		var nodes []string
		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				nodes = append(nodes, line)
			}
		}
		return nodes, nil
	}
}

// commandFields runs script and splits its output on whitespace.
func commandFields(script string) nodeSource {
	return func(ctx context.Context) ([]string, error) {
		out, err := shell.Output(ctx, shell.Command{Script: script})
		if err != nil {
			return nil, err
		}
		return strings.Fields(out), nil
	}
}
