package main

import "github.com/OpenTraceLab/OpenTraceShepherd/cmd/shepherd/cmd"

func main() {
	cmd.Execute()
}
