package main

import "github.com/fjod/storefront/internal/cmd"

func main() {
	cmd.Execute()
}
