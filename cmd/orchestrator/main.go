package main

import (
	"github.com/stakeops/orchestrator/internal/cli"
)

func main() {
	cli.Execute()
}
