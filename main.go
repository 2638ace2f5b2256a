package main

import "github.com/Tiliavir/ttt-insights/cmd"

func main() {
	cmd.Execute()
}
