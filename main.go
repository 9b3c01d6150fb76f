package main

import (
	"log"

	"github.com/spigell/interviewd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
