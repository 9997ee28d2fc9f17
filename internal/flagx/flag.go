// Package flagx contains helpers for parsing a subset of command-line flags
// without interfering with flags defined by other packages.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs narrows args down to the flags named in keep, carrying each
// flag's value along. Both the "-f value" and "-f=value" spellings are
// recognized; keep must list every accepted spelling, including any
// double-dash variants.
func FilterArgs(args []string, keep []string) []string {
	wanted := func(name string) bool {
		for _, k := range keep {
			if name == k {
				return true
			}
		}
		return false
	}

	out := []string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			// A bare value; picked up below together with its flag.
			continue
		}

		if name, _, ok := strings.Cut(arg, "="); ok {
			if wanted(name) {
				out = append(out, arg)
			}
			continue
		}

		if wanted(arg) {
			out = append(out, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, args[i+1])
				i++
			}
		}
	}
	return out
}

// jsonConfigSpellings are the accepted ways to point at a JSON config file.
var jsonConfigSpellings = []string{"-c", "-config", "--c", "--config"}

// JsonConfigFlags inspects command-line arguments and extracts the config
// file path provided via the -c or -config flags (single or double dash,
// with or without '='). If none is present, an empty string is returned.
func JsonConfigFlags() string {
	args := FilterArgs(os.Args[1:], jsonConfigSpellings)

	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to a JSON config file")
	fs.StringVar(&path, "c", "", "path to a JSON config file (short)")
	_ = fs.Parse(args)

	return path
}
