package main

import "github.com/opencohort/runner/internal/command"

func main() {
	command.Execute()
}
