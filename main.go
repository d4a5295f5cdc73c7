package main

import "github.com/flightbase/fbo-management/cmd"

func main() {
	cmd.Execute()
}
