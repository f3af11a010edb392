package main

import (
	"github.com/staykit/staywap/cmd"
)

func main() {
	cmd.Execute()
}
