package main

import (
	"log"

	"github.com/learnfox/LearnFox/internal/pkg/app"
)

func main() {
	log.Fatal(app.Listen(app.New()))
}
