package main

import (
	"github.com/joho/godotenv"

	"github.com/Mack1234552152/cs2-item-monitor/internal/cli"
)

func main() {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cli.Execute()
}
