package main

import "rulify/cmd/cli"

func main() {
	cli.Execute()
}
