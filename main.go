package main

import "github/chapool/cross-dapp/cmd"

func main() {
	cmd.Execute()
}
