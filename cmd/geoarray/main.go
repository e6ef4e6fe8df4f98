// Command geoarray applies geometry operations elementwise over WKT files
// and stored datasets, and evaluates geometry scripts.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/geoarray/pkg/config"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/script"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	kernel     string
	logLevel   string
}

// config loads the configuration file, if any, and applies flag overrides.
func (o *rootOptions) config() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.kernel != "" {
		cfg.Kernel = o.kernel
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) app() (*App, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return NewApp(cfg)
}

// withApp runs fn with a fresh App and closes it afterwards.
func (o *rootOptions) withApp(fn func(a *App) error) error {
	a, err := o.app()
	if err != nil {
		return err
	}
	err = fn(a)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "geoarray",
		Short:         "Vectorized geometry operations over opaque kernel handles",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&opts.kernel, "kernel", "", "geometry kernel: planar, sdfx or geos")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		newOpsCmd(opts),
		newRunCmd(opts),
		newEvalCmd(opts),
		newStoreCmd(opts),
	)
	return root
}

func newOpsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the operations the kernel provides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSHAPE\tSYMBOL")
				for _, d := range a.Operations() {
					fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Shape, d.Symbol)
				}
				return w.Flush()
			})
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		srcA, srcB string
		workers    int
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "run OP --a SRC [--b SRC]",
		Short: "Apply an operation elementwise",
		Long: `Apply an operation elementwise and print one result per line.

SRC is a file with one WKT per line (an empty line or NULL is a missing
entry), "-" for standard input, or @name for a stored dataset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *App) error {
				x, err := a.load(srcA, cmd.InOrStdin())
				if err != nil {
					return err
				}
				defer geometry.ReleaseAll(x)
				var y []*geometry.Geometry
				if srcB != "" {
					if y, err = a.load(srcB, cmd.InOrStdin()); err != nil {
						return err
					}
					defer geometry.ReleaseAll(y)
					if y == nil {
						y = []*geometry.Geometry{}
					}
				}
				res, err := a.Run(cmd.Context(), args[0], x, y, workers)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				return writeLines(cmd.OutOrStdout(), res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&srcA, "a", "", "first operand")
	f.StringVar(&srcB, "b", "", "second operand, for binary operations")
	f.IntVar(&workers, "workers", 0, "partitions for binary operations; above 1 runs in parallel")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("a")
	return cmd
}

func newEvalCmd(opts *rootOptions) *cobra.Command {
	var expr string
	cmd := &cobra.Command{
		Use:   "eval [FILE]",
		Short: "Evaluate a geometry script and print the result as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := expr
			switch {
			case len(args) == 1 && expr != "":
				return fmt.Errorf("eval takes a file or -e, not both")
			case len(args) == 1:
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				source = string(data)
			case expr == "":
				return fmt.Errorf("eval needs a file or -e EXPR")
			}
			return opts.withApp(func(a *App) error {
				res := a.Evaluate(source)
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if len(res.Errors) > 0 {
					return fmt.Errorf("evaluation failed with %d error(s)", len(res.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "script source")
	return cmd
}

func newStoreCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored datasets",
		Long: `Manage stored datasets.

Datasets persist only when store.path is set in the config; the default
store lives in memory for the duration of one command.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "put NAME FILE",
			Short: "Store the WKT lines of FILE as dataset NAME",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(a *App) error {
					gs, err := a.load(args[1], cmd.InOrStdin())
					if err != nil {
						return err
					}
					defer geometry.ReleaseAll(gs)
					if err := a.store.Put(args[0], gs); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "stored %d geometries as %s\n", len(gs), args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "get NAME",
			Short: "Print dataset NAME as WKT lines",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(a *App) error {
					gs, err := a.store.Get(a.kernel, args[0])
					if err != nil {
						return err
					}
					defer geometry.ReleaseAll(gs)
					wkts, err := toWKT(gs)
					if err != nil {
						return err
					}
					return writeLines(cmd.OutOrStdout(), script.Result{Kind: script.KindGeometries, Geometries: wkts})
				})
			},
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List datasets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(a *App) error {
					names, err := a.store.List()
					if err != nil {
						return err
					}
					for _, n := range names {
						fmt.Fprintln(cmd.OutOrStdout(), n)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "rm NAME",
			Short: "Delete dataset NAME",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(a *App) error {
					return a.store.Delete(args[0])
				})
			},
		},
	)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeLines prints one result per line. Missing values print as NULL
// for geometries and none for booleans.
func writeLines(w io.Writer, res script.Result) error {
	switch res.Kind {
	case script.KindBools:
		for _, b := range res.Bools {
			if _, err := fmt.Fprintln(w, b); err != nil {
				return err
			}
		}
	case script.KindGeometries:
		for _, g := range res.Geometries {
			line := missingLine
			if g != nil {
				line = *g
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}
