package main

import (
	"log"

	"github.com/thiagokokada/gitstamp/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitstamp: %v", err)
	}
}
