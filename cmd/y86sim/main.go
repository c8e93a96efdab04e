// Command y86sim runs Y86-64 programs on a five-stage pipelined simulator.
//
// Usage:
//
//	y86sim run [flags] <program>      run to completion and print a report
//	y86sim debug [flags] <program>    step through a program interactively
//	y86sim bench [flags] [name...]    run the bundled benchmark programs
//	y86sim disasm <program>           print a .yo style listing
//
// Programs are raw binary images or .yo listings, loaded at address 0.
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
