// Package main implements the codecord command-line front end: hook entry
// points invoked by the coding assistant, the background presence daemon,
// and the status/stop/statusline user commands.
package main

func main() {
	Execute()
}
