package main

import "github.com/pfrederiksen/comment-map/internal/cli"

func main() {
	cli.Execute()
}
