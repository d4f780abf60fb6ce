/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "wordbridge/cmd"

func main() {
	cmd.Execute()
}
