package main

import "github.com/deploymenttheory/go-unixfs/cmd"

func main() {
	cmd.Execute()
}
