package main

import "github.com/klytics/sheetbot/cmd"

func main() {
	cmd.Execute()
}
