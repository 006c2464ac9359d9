package main

import (
	"github.com/joho/godotenv"

	"github.com/tokenrelay/tokenrelay/cmd/tokenrelay"
)

func main() {
	_ = godotenv.Load()
	tokenrelay.Execute()
}
