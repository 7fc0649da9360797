// Command catluac compiles a source file into the host runtime's JSON
// script document.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/btouchard/catluac/internal/config"
	"github.com/btouchard/catluac/internal/driver"
)

var (
	errColor  = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
	okColor   = color.New(color.FgGreen)
)

func main() {
	var (
		output   string
		emitIR   bool
		lint     bool
		optLevel int
		cfgPath  string
		verbose  bool
		o0       bool
		o1       bool
		o2       bool
	)
	flag.StringVar(&output, "o", "", "output file path (default: <input>.json)")
	flag.BoolVar(&emitIR, "ir", false, "print the CWIR stream before JSON emission")
	flag.BoolVar(&lint, "lint", false, "print a JSON diagnostic array and exit 0 regardless of errors")
	flag.IntVar(&optLevel, "O", -1, "optimization level override (0, 1 or 2)")
	flag.BoolVar(&o0, "O0", false, "optimization level 0")
	flag.BoolVar(&o1, "O1", false, "optimization level 1")
	flag.BoolVar(&o2, "O2", false, "optimization level 2")
	flag.StringVar(&cfgPath, "config", "", "explicit .catlua.yaml path, skipping upward discovery")
	flag.BoolVar(&verbose, "v", false, "print the run summary line")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage: catluac <file> [-o output.json] [--ir] [--lint] [-O0|-O1|-O2] [-v] [-config path]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	inputFile := flag.Arg(0)

	cfg, err := resolveConfig(cfgPath, inputFile)
	if err != nil {
		_, _ = errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := driver.Options{
		OptLevel:   cfg.OptLevel,
		CatalogDSN: cfg.CatalogDB,
		LintMode:   lint,
	}
	if optLevel >= 0 {
		opts.OptLevel = optLevel
	}
	switch {
	case o2:
		opts.OptLevel = 2
	case o1:
		opts.OptLevel = 1
	case o0:
		opts.OptLevel = 0
	}

	res, err := driver.Run(inputFile, opts)
	if err != nil {
		_, _ = errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if lint {
		data, err := res.Diags.LintJSON()
		if err != nil {
			_, _ = errColor.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		os.Exit(0)
	}

	for _, d := range res.Diags.Warnings() {
		_, _ = warnColor.Fprintln(os.Stderr, d.Error())
	}
	for _, d := range res.Diags.Errors() {
		_, _ = errColor.Fprintln(os.Stderr, d.Error())
	}
	if res.Diags.HasErrors() {
		os.Exit(1)
	}

	if emitIR {
		fmt.Println(res.CWIR)
	}

	outPath := output
	if outPath == "" {
		base := filepath.Base(inputFile)
		name := base[:len(base)-len(filepath.Ext(base))] + ".json"
		if cfg.OutputDir != "" {
			outPath = filepath.Join(cfg.OutputDir, name)
		} else {
			outPath = filepath.Join(filepath.Dir(inputFile), name)
		}
	}

	data, err := res.JSON()
	if err != nil {
		_, _ = errColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_, _ = errColor.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		_, _ = errColor.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}

	if verbose {
		fmt.Println(res.Summary(inputFile))
	}
	_, _ = okColor.Fprintf(os.Stderr, "Wrote %s\n", outPath)
}

// resolveConfig loads .catlua.yaml explicitly if cfgPath is set, otherwise
// discovers it by walking upward from the input file's directory.
func resolveConfig(cfgPath, inputFile string) (config.Config, error) {
	if cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("reading %s: %w", cfgPath, err)
		}
		return config.Decode(data)
	}
	return config.Discover(filepath.Dir(inputFile))
}
