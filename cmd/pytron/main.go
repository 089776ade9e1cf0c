package main

import "github.com/pytron-dev/pytron/cmd/pytron/cmd"

func main() {
	cmd.Execute()
}
