package main

import "github.com/songbird-discord/songbird/cmd"

func main() {
	cmd.Execute()
}
