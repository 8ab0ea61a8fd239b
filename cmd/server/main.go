package main

import (
	"os"

	"portfolio-ai/backend/internal/app"
)

func main() {
	os.Exit(app.Run())
}
