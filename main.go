package main

import "github.com/lucaswhitaker22/specracer-engine-go/cmd"

func main() {
	cmd.Execute()
}
