package main

import "github.com/pricemesh/pricemesh/cmd"

func main() {
	cmd.Execute()
}
