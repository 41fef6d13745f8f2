package main

import (
	"os"
	_ "time/tzdata"

	"cis-timetable/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
