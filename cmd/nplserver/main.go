package main

import "nplserver/internal/cli"

func main() {
	cli.Execute()
}
