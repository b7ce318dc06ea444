package main

import "github.com/gush-sh/gush/cmd"

func main() {
	cmd.Execute()
}
