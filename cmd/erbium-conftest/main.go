// Command erbium-conftest loads and pretty-prints the configuration
// document named in §6's CLI surface, exiting 0 on success and 1 on any
// load or validation error.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stappersg/erbium/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	doc, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err = doc.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Printf("%s: OK\n\n", path)
	os.Stdout.Write(out)

	return 0
}
