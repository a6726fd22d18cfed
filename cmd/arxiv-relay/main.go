package main

import (
	"fmt"
	"os"

	"github.com/yangfeiyang-123/arxiv-relay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
