package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/speechbox/server/internal/cli"
)

func main() {
	_ = godotenv.Load(".env")

	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
