package main

import "github.com/MeKo-Tech/artex/cmd/artex/cmd"

func main() {
	cmd.Execute()
}
