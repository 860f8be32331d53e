package main

import "github.com/charliek/horn/internal/cli"

func main() {
	cli.Execute()
}
