package main

import "operating-hours/internal/cli"

func main() {
	cli.Execute()
}
