package main

import "github.com/nextlevelbuilder/forgecode/cmd"

func main() {
	cmd.Execute()
}
