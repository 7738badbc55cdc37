package main

import "github.com/mchmarny/lstvscan/pkg/cli"

func main() {
	cli.Execute()
}
