package main

import "github.com/thiagocrux/simcasi/cmd"

func main() {
	cmd.Execute()
}
