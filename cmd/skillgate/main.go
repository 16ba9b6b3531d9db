package main

import "github.com/vietddude/skillgate/internal/cli"

func main() {
	cli.Execute()
}
