// Command symresolve inspects hash-based symbol resolution from the command
// line. Hashing works everywhere; lookups need windows/amd64.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/resolve"
)

var log = logrus.New()

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:           "symresolve",
		Short:         "resolve modules and exports by hash",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
			if debug {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.AddCommand(newHashCommand())
	cmd.AddCommand(platformCommands()...)
	return cmd
}

func newHashCommand() *cobra.Command {
	var module bool
	cmd := &cobra.Command{
		Use:   "hash <name>...",
		Short: "print the hash of export or module names",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range args {
				h := hash.String(name)
				if module {
					h = hash.Module(name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "0x%016X\t%s\n", h, name)
			}
		},
	}
	cmd.Flags().BoolVar(&module, "module", false, "fold the name the way loaded module names are folded")
	return cmd
}

// parseKey accepts "#<ordinal>", a raw "0x<hash>" or an export name.
func parseKey(s string) (resolve.SymbolKey, error) {
	switch {
	case strings.HasPrefix(s, "#"):
		n, err := strconv.ParseUint(s[1:], 0, 16)
		if err != nil {
			return 0, errors.Wrapf(err, "ordinal %q", s)
		}
		return resolve.Ordinal(uint16(n)), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		h, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "hash %q", s)
		}
		return resolve.SymbolKey(h), nil
	case s == "":
		return 0, errors.New("empty symbol")
	}
	return resolve.NameHash(hash.String(s)), nil
}

// parseModule accepts a raw "0x<hash>", "." for the executable, or a name.
func parseModule(s string) (uint64, error) {
	if s == "." {
		return 0, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		h, err := strconv.ParseUint(s[2:], 16, 64)
		return h, errors.Wrapf(err, "module hash %q", s)
	}
	if s == "" {
		return 0, errors.New("empty module name")
	}
	return hash.Module(s), nil
}
