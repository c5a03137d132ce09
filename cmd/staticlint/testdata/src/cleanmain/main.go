package main

import (
	"errors"
	"log"
)

func run() error {
	return errors.New("boom")
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
