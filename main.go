package main

import "github.com/fgrehm/moor/cmd"

func main() {
	cmd.Execute()
}
