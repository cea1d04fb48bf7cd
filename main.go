package main

import "github.com/KaramelBytes/walletcase/cmd"

func main() {
	cmd.Execute()
}
