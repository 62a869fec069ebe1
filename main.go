package main

import (
	"sellwatcher/internal/cli"
)

func main() {
	cli.Execute()
}
