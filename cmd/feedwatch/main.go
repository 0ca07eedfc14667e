package main

import (
	"os"

	"github.com/wonny/feedwatch/cmd/feedwatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
