package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"kerno/cmd/api/commands"
)

// @title Kerno Documents API
// @version 1.0
// @BasePath /
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
