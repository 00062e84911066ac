package main

import "nathanbeddoewebdev/carbonq/cmd"

func main() {
	cmd.Execute()
}
