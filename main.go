package main

import "github.com/wkalt/tablelog/cmd"

func main() {
	cmd.Execute()
}
