package main

import "github.com/kendall-kelly/manuorder-api/cmd"

func main() {
	cmd.Execute()
}
