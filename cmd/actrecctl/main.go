package main

import "github.com/gosuda/actrec/internal/cli"

func main() {
	cli.Execute()
}
