// Package main provides the entry point for the mission-control CLI.
package main

import "fsl/mission-control/cmd"

func main() {
	cmd.Execute()
}
