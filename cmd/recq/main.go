package main

import "github.com/steinarvk/recquery/lib/cli"

func main() {
	cli.Main()
}
