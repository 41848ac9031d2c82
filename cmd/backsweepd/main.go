package main

import (
	"github.com/backsweep/backsweep/server"
)

func main() {
	server.Main()
}
