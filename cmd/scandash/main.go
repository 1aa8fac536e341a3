package main

import "github.com/pkgscan/scandash/cmd"

func main() {
	cmd.Execute()
}
