package main

import "github.com/whisklabs/pants-dependency-sanitizer/cmd"

func main() {
	cmd.Execute()
}
