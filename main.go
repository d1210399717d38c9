package main

import "github.com/nervosnetwork/nervos-bot/cmd"

func main() {
	cmd.Execute()
}
