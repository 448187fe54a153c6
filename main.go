package main

import "github.com/jmehdipour/credit-engine/cmd"

func main() {
	cmd.Execute()
}
