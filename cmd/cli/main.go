package main

import (
	"github.com/mchmarny/credscore/pkg/cli"
)

func main() {
	cli.Execute()
}
