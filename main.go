package main

import "termgrid/cmd"

func main() {
	cmd.Execute()
}
