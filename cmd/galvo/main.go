package main

import "github.com/jt05610/galvo/cmd/galvo/cmd"

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
