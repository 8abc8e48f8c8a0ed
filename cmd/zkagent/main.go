package main

import "github.com/vietddude/zkagent/internal/cli"

func main() {
	cli.Execute()
}
