package main

import (
	"os"

	"github.com/H-SG/telegram-quizbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
