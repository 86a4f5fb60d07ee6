package main

import (
	"fmt"
	"os"
)

func helper() {
	os.Exit(2) // calls outside main.main are allowed
}

func main() {
	fmt.Println("starting")
	os.Exit(1) // want "avoid using os.Exit in main.main"
}
