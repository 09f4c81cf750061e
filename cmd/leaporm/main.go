// Package main provides the leaporm command.
package main

import (
	"os"

	"github.com/leapstack-labs/leaporm/internal/cli"

	// Register drivers via init()
	_ "github.com/leapstack-labs/leaporm/pkg/drivers/mysql"
	_ "github.com/leapstack-labs/leaporm/pkg/drivers/postgres"
	_ "github.com/leapstack-labs/leaporm/pkg/drivers/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
