package main

import "github.com/vecindex/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
