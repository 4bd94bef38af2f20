package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/15226124477/cggtts"
	"github.com/midbel/cli"
)

type exportCmd struct{}

func (exportCmd) Run(args []string) error {
	var (
		g   globals
		set = cli.NewFlagSet("export")
		out = set.String("o", "", "output xlsx file")
		txt = set.Bool("txt", false, "also write a text gap report")
	)
	g.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 1 {
		return errors.New("export: exactly one input file expected")
	}
	if err := g.load(); err != nil {
		return err
	}
	defer writeMetrics(g.cfg.Metrics)

	opts, err := g.cfg.Options()
	if err != nil {
		return err
	}
	in := set.Arg(0)
	c, diags, err := cggtts.LoadFile(in, opts...)
	if err != nil {
		countFile("export", 0, diags, err)
		return err
	}
	countFile("export", len(c.Tracks), diags, nil)

	xlsx := *out
	if xlsx == "" {
		xlsx = in + ".xlsx"
	}
	base := strings.TrimSuffix(xlsx, filepath.Ext(xlsx))
	s := cggtts.Statistics(filepath.Base(in), c)
	if err := s.ToExcelFile(xlsx); err != nil {
		return err
	}
	if err := s.ToLostReport(base + ".lost.html"); err != nil {
		return err
	}
	if *txt {
		s.ToTextReport(base + ".lost.txt")
	}
	return nil
}
