package main

import (
	_ "time/tzdata"

	"clinic-agent/internal/cli"
)

func main() {
	cli.Execute()
}
