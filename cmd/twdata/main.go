package main

import (
	"os"

	"github.com/couchcryptid/taiwan-data-etl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
