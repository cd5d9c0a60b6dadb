package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// printStatus prints a status line with a colored symbol.
func printStatus(out io.Writer, symbol, message string, attr color.Attribute) {
	c := color.New(attr)
	fmt.Fprintf(out, "%s %s\n", c.Sprint(symbol), message)
}
