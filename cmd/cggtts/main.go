package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/15226124477/method"
	"github.com/midbel/cli"
)

const summary = "cggtts reads, checks, rewrites and schedules CGGTTS 2E files."

const help = `Files are read with checksum verification always on. Problems that do not
prevent reading (checksum mismatch, unknown header field in lenient mode,
out of range elevation) are reported and counted but do not fail the command.

Common options:

  -config FILE   toml configuration (log_level, workers, lenient, encoding...)
  -metrics FILE  write prometheus counters in textfile format when done`

var commands = []*cli.Command{
	{
		Name:    "check",
		Summary: "parse files and report problems",
		Usage:   "check [-config FILE] [-metrics FILE] [-ext EXT] FILE|DIR...",
		Handler: checkCmd{},
	},
	{
		Name:    "convert",
		Alias:   []string{"rewrite"},
		Summary: "rewrite files in canonical form",
		Usage:   "convert [-config FILE] [-metrics FILE] [-ext EXT] [-rename LAB] -o DIR FILE|DIR...",
		Handler: convertCmd{},
	},
	{
		Name:    "export",
		Summary: "export a file to xlsx with an html gap report",
		Usage:   "export [-config FILE] [-metrics FILE] [-txt] -o OUT.xlsx FILE",
		Handler: exportCmd{},
	},
	{
		Name:    "schedule",
		Summary: "print or follow tracking windows",
		Usage:   "schedule [-config FILE] [-from TIME] [-to TIME] [-duration SEC] [-bipm] [-follow]",
		Handler: scheduleCmd{},
	},
}

func main() {
	root := cli.New()
	root.SetSummary(summary)
	root.SetHelp(help)
	for _, c := range commands {
		if err := root.Register([]string{c.Name}, c); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		root.Help()
		os.Exit(2)
	}
	if err := root.Execute(args); err != nil {
		var sugg cli.SuggestionError
		if errors.As(err, &sugg) && len(sugg.Others) > 0 {
			fmt.Fprintf(os.Stderr, "%s\ndid you mean: %s?\n", err, strings.Join(sugg.Others, ", "))
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals 每个子命令共有的参数
type globals struct {
	config  string
	metrics string
	cfg     Config
}

func (g *globals) register(set *flag.FlagSet) {
	set.StringVar(&g.config, "config", "", "configuration file")
	set.StringVar(&g.metrics, "metrics", "", "prometheus textfile output")
}

func (g *globals) load() error {
	cfg, err := LoadConfig(g.config)
	if err != nil {
		return err
	}
	if g.metrics != "" {
		cfg.Metrics = g.metrics
	}
	if err := cfg.Apply(); err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

// expandPaths 目录按扩展名展开
func expandPaths(args []string, ext string) ([]string, error) {
	var paths []string
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			paths = append(paths, a)
			continue
		}
		if ext == "" {
			return nil, fmt.Errorf("%s: directory needs -ext", a)
		}
		files, err := method.GetFilesPath(a, ext)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no input file")
	}
	return paths, nil
}
