package main

import "github.com/okena/remoted/internal/remotecli"

func main() {
	remotecli.Execute()
}
