package app

import "strings"

// VERSION is major.minor.patch, followed by the release month as +yyyymm01.
// MODULE is the program name used for the CLI and the log.
const (
	VERSION = "1.0.03+20261001"
	MODULE  = "gpioisr"
)

// Version returns the program name and version without the release month.
func Version() string {
	v, _, _ := strings.Cut(VERSION, "+")
	return MODULE + " V" + v
}
