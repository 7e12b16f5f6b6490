/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/Kirifer/ITS-certificate-generator/cmd"

func main() {
	cmd.Execute()
}
