package main

import "github.com/mvp-joe/sasswatch/internal/cli"

func main() {
	cli.Execute()
}
