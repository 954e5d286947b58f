// SPDX-License-Identifier: LGPL-3.0-or-later
// Author: Michel Prunet - Safe Pic Technologies
package main

import (
	"fmt"
	"os"

	"tsmap-recover.safepic.fr/tsmap"
)

func usage() {
	fmt.Println("tsmap-recover - rebuild original sources from JavaScript source maps")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tsmap-recover extract [flags] <url|file|->   Fetch a .map, print its analysis and extract its sources")
	fmt.Println("  tsmap-recover analyze [flags] <url|file|->   Print the analysis only")
	fmt.Println("  tsmap-recover crawl   [flags] <url>          Crawl a page, find JS and extract .map sources")
	fmt.Println()
	fmt.Println("Run 'tsmap-recover <subcommand> -h' for subcommand help.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(tsmap.ExitFatal)
	}
	cmd := os.Args[1]

	switch cmd {
	case "extract":
		os.Exit(tsmap.RunExtract(os.Args[2:]))
	case "analyze":
		os.Exit(tsmap.RunAnalyze(os.Args[2:]))
	case "crawl":
		os.Exit(tsmap.RunCrawl(os.Args[2:]))
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", cmd)
		usage()
		os.Exit(tsmap.ExitFatal)
	}
}
