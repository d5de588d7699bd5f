package main

import "github.com/emiliancristea/bunker-sharescreen/cmd/bunker/cmd"

func main() {
	cmd.Execute()
}
