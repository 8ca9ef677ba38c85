package main

import "github.com/evlabs/seqloader/cmd"

func main() {
	cmd.Execute()
}
