package main

import (
	"newsforge/cmd/handlers"
	"newsforge/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
