package main

import "miload/cmd"

func main() {
	cmd.Execute()
}
