package main

import "github.com/sigdec/tmc/cmd"

func main() {
	cmd.Execute()
}
