package main

import "github.com/nsyszr/smsrelay/cmd"

func main() {
	cmd.Execute()
}
