//go:build windows && amd64

package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/windows"

	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/memory"
	"github.com/carved4/go-symresolve/pkg/names"
	"github.com/carved4/go-symresolve/pkg/ntabi"
	"github.com/carved4/go-symresolve/pkg/resolve"
)

func platformCommands() []*cobra.Command {
	return []*cobra.Command{
		newModuleCommand(),
		newExportCommand(),
		newListCommand(),
		newVerifyCommand(),
	}
}

func moduleBase(arg string) (uintptr, error) {
	h, err := parseModule(arg)
	if err != nil {
		return 0, err
	}
	w := resolve.NewWalker(memory.Local{}, resolve.GetTEB())
	base, err := w.ModuleBase(h)
	if err != nil {
		return 0, errors.Wrapf(err, "module %s (0x%016X)", arg, h)
	}
	log.WithFields(logrus.Fields{"module": arg, "hash": fmt.Sprintf("0x%016X", h)}).Debugf("base 0x%X", base)
	return base, nil
}

func newModuleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "module [name]",
		Short: "print the base of a loaded module, or list them all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				base, err := moduleBase(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "0x%016X\n", base)
				return nil
			}
			mods, err := ntabi.NewView(memory.Local{}, nil).Modules(resolve.GetTEB())
			if err != nil {
				return errors.Wrap(err, "walk loader list")
			}
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Base", "Size", "Hash", "Path"})
			for _, m := range mods {
				table.Append([]string{
					fmt.Sprintf("0x%016X", m.Base),
					humanize.IBytes(uint64(m.SizeOfImage)),
					fmt.Sprintf("0x%016X", hash.Module(m.Name)),
					m.Path,
				})
			}
			table.Render()
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <module> <symbol|#ordinal|0xhash>",
		Short: "resolve one export of a loaded module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := moduleBase(args[0])
			if err != nil {
				return err
			}
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}
			addr, err := resolve.NewResolver(memory.Local{}).ExportAddress(base, key)
			if err != nil {
				return errors.Wrapf(err, "export %s (%s)", args[1], key)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "0x%016X\t+0x%X\n", addr, addr-base)
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	var forwarders bool
	cmd := &cobra.Command{
		Use:   "list <module>",
		Short: "list the export table of a loaded module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := moduleBase(args[0])
			if err != nil {
				return err
			}
			entries, err := resolve.NewResolver(memory.Local{}).Exports(base)
			if err != nil {
				return errors.Wrap(err, "read export table")
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Ordinal", "Address", "Name", "Hash"})
			for _, e := range entries {
				row := []string{strconv.FormatUint(uint64(e.Ordinal), 10), fmt.Sprintf("0x%016X", e.Address), e.Name, ""}
				if e.Name != "" {
					row[3] = fmt.Sprintf("0x%016X", hash.String(e.Name))
				}
				if e.Forwarder != "" {
					if !forwarders {
						continue
					}
					row[1] = "-> " + e.Forwarder
				}
				table.Append(row)
			}
			table.Render()
			log.WithField("exports", len(entries)).Debug("listed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&forwarders, "forwarders", false, "include forwarded exports")
	return cmd
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [module symbol]",
		Short: "compare hash resolution with the OS loader",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return errors.New("want no arguments or <module> <symbol>")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := names.Checks()
			if len(args) == 2 {
				mod, sym := []byte(args[0]), []byte(args[1])
				checks = []names.Check{{
					Module:     hash.Module(args[0]),
					Symbol:     hash.String(args[1]),
					ModuleName: func() []byte { return mod },
					SymbolName: func() []byte { return sym },
				}}
			}
			failed := 0
			for _, c := range checks {
				if err := verify(c); err != nil {
					log.WithError(err).Error("mismatch")
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s!%s\n", color.GreenString("ok"), c.ModuleName(), c.SymbolName())
			}
			if failed > 0 {
				return errors.Errorf("%d of %d checks failed", failed, len(checks))
			}
			return nil
		},
	}
}

func verify(c names.Check) error {
	modName, symName := string(c.ModuleName()), string(c.SymbolName())
	h, err := windows.LoadLibrary(modName)
	if err != nil {
		return errors.Wrapf(err, "LoadLibrary %s", modName)
	}
	want, err := windows.GetProcAddress(h, symName)
	if err != nil {
		return errors.Wrapf(err, "GetProcAddress %s", symName)
	}

	base := resolve.GetModuleBase(c.Module)
	if base != uintptr(h) {
		return errors.Errorf("%s: base 0x%X, loader says 0x%X", modName, base, uintptr(h))
	}
	got := resolve.GetFunctionAddress(base, c.Symbol)
	if got != want {
		return errors.Errorf("%s!%s: resolved 0x%X, loader says 0x%X", modName, symName, got, want)
	}
	return nil
}
