package main

import (
	"fmt"
	"os"
	exit "os"
)

func main() {
	defer os.Exit(0)

	go func() {
		os.Exit(1)
	}()

	if len(os.Args) > 1 {
		os.Exit(2) // want "использование os.Exit в функции main запрещено"
	}

	for i := 0; i < 1; i++ {
		exit.Exit(3) // want "использование os.Exit в функции main запрещено"
	}

	fmt.Println("ok")
	os.Exit(0) // want "использование os.Exit в функции main запрещено"
}

func helper() {
	os.Exit(1)
}
