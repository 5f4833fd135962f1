package main

import "github.com/LeJamon/goUnitrie/internal/cli"

func main() {
	cli.Execute()
}
