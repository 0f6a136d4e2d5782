// Package flagx lets several components share one command line: each one
// picks out the flags it owns and leaves the rest alone.
package flagx

import (
	"flag"
	"strings"
)

// ConfigFileFlags are the names accepted for the configuration file path.
var ConfigFileFlags = []string{"-c", "-config", "--config"}

// FilterArgs returns only the flags named in allowedFlags, together with
// their values. Both "-c conf.yaml" and "--config=conf.yaml" forms are kept.
// A following token that starts with '-' is never treated as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	kept, _ := split(args, allowedFlags)
	return kept
}

// StripArgs is the complement of FilterArgs: it drops the named flags and
// their values and returns everything else in the original order.
func StripArgs(args []string, flags []string) []string {
	_, rest := split(args, flags)
	return rest
}

func split(args []string, names []string) (kept, rest []string) {
	allowed := make(map[string]struct{}, len(names))
	for _, f := range names {
		allowed[f] = struct{}{}
	}

	kept = make([]string, 0, len(args))
	rest = make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				kept = append(kept, arg)
			} else {
				rest = append(rest, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; !ok {
			rest = append(rest, arg)
			continue
		}

		kept = append(kept, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			kept = append(kept, args[i+1])
			i++
		}
	}

	return kept, rest
}

// ConfigFile extracts the configuration file path given with -c, -config or
// --config. Other arguments are ignored. It returns "" when none is present.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFileFlags))

	return path
}
