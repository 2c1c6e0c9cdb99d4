package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"tyrant/cmd/tyrant/cmd"
)

func main() {
	// provider keys may live in a local .env
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cmd.Execute()
}
