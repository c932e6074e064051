package main

import (
	"log"

	"github.com/perchkeep/perch/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ perch failed to start: %v", err)
	}
}
