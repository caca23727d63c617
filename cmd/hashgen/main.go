// Command hashgen precomputes module and export name hashes.
//
//	hashgen generate -m names.yaml -o names_gen.go
//	hashgen audit --dll C:\Windows\System32\ntdll.dll -m names.yaml
//	hashgen replace --dry-run ./...
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carved4/go-symresolve/pkg/hashgen"
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
		Use:           "hashgen",
		Short:         "precompute name hashes for go-symresolve",
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
	cmd.AddCommand(newGenerateCommand(), newAuditCommand(), newReplaceCommand())
	return cmd
}

func newGenerateCommand() *cobra.Command {
	var manifest, output string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "write Go constants for every name in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := hashgen.LoadManifest(manifest)
			if err != nil {
				return err
			}
			src, err := hashgen.Generate(m)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.WriteFile(output, src, 0o644); err != nil {
				return errors.Wrap(err, "write output")
			}
			log.WithFields(logrus.Fields{
				"modules":  len(m.Modules),
				"symbols":  len(m.Symbols),
				"literals": len(m.Literals),
			}).Infof("wrote %s", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "names.yaml", "manifest to read")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, stdout when empty")
	return cmd
}

func newAuditCommand() *cobra.Command {
	var dlls []string
	var manifest string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "check manifest symbols against the export tables of real DLLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(dlls) == 0 {
				return errors.New("at least one --dll is required")
			}
			var symbols []string
			if manifest != "" {
				m, err := hashgen.LoadManifest(manifest)
				if err != nil {
					return err
				}
				symbols = m.Symbols
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Module", "Hash", "Exports", "Collisions", "Shadowed", "Missing"})
			dirty := 0
			for _, path := range dlls {
				rep, err := hashgen.Audit(path, symbols, log)
				if err != nil {
					return err
				}
				table.Append([]string{
					rep.Module,
					fmt.Sprintf("0x%016X", rep.ModuleHash),
					strconv.Itoa(rep.Exports),
					strconv.Itoa(len(rep.Collisions)),
					strconv.Itoa(len(rep.Shadowed)),
					strings.Join(rep.Missing, " "),
				})
				if len(rep.Collisions) > 0 || len(rep.Shadowed) > 0 {
					dirty++
				}
			}
			table.Render()
			if dirty > 0 {
				return errors.Errorf("%d of %d modules have ambiguous hashes", dirty, len(dlls))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&dlls, "dll", nil, "DLL to audit (repeatable)")
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "manifest whose symbols must resolve")
	return cmd
}

func newReplaceCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "replace [dir]",
		Short: "rewrite hash.String(\"...\") call sites into constants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = strings.TrimSuffix(args[0], "/...")
			}
			if dryRun {
				log.Info("dry run, no files will be modified")
			}
			n, err := hashgen.ReplaceDir(root, dryRun, log)
			if err != nil {
				return err
			}
			log.WithField("dir", root).Infof("%d call sites replaced", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report replacements without writing")
	return cmd
}
