// The main package for the pressharvest executable.
package main

import (
	"pressharvest/cmd"
)

func main() {
	cmd.Execute()
}
