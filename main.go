package main

import "timer-tracker.com/timer-tracker/cmd"

func main() {
	cmd.Execute()
}
