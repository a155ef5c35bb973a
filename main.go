package main

import "github.com/erangalds/t-tool-calling-with-llms/cmd"

func main() {
	cmd.Execute()
}
