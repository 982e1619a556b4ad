package main

import "github.com/agentic-research/grove/cmd"

func main() {
	cmd.Execute()
}
