package main

import "github.com/chrisilt/course-watcher/internal/cli"

func main() {
	cli.Execute()
}
