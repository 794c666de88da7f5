package main

import "flatcodec/internal/cli"

func main() {
	cli.Execute()
}
