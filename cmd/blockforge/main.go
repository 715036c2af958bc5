package main

import "github.com/samogod/blockforge/cmd"

func main() {
	cmd.Execute()
}
