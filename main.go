package main

import "github.com/raul-delacruz/fyrd/cmd"

func main() {
	cmd.Execute()
}
