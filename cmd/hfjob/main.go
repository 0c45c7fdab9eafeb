package main

import (
	"github.com/yngpu/hfjob/pkg/cli"
)

func main() {
	cli.Execute()
}
