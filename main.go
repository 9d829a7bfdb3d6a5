package main

import "github.com/killallgit/podcast-dl/cmd"

func main() {
	cmd.Execute()
}
