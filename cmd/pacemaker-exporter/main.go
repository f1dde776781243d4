package main

import (
	"fmt"
	"os"

	"github.com/marcan/pacemaker-exporter/pkg/cmd/exporter"
)

func main() {
	command := exporter.NewExporterCommand()
	if err := command.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
