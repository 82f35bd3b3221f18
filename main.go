package main

import (
	"github.com/manifest-network/blockscan/cmd/scanblocks"
)

func main() {
	scanblocks.Execute()
}
