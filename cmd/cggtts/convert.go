package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/15226124477/cggtts"
	"github.com/midbel/cli"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type convertCmd struct{}

func (convertCmd) Run(args []string) error {
	var (
		g      globals
		set    = cli.NewFlagSet("convert")
		out    = set.String("o", "", "output directory")
		ext    = set.String("ext", "", "extension of files when scanning directories")
		rename = set.String("rename", "", "use the standard file name with this lab and receiver code (e.g. SY82)")
	)
	g.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("convert: -o is required")
	}
	if err := g.load(); err != nil {
		return err
	}
	defer writeMetrics(g.cfg.Metrics)

	paths, err := expandPaths(set.Args(), *ext)
	if err != nil {
		return err
	}
	opts, err := g.cfg.Options()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*out, 0755); err != nil {
		return err
	}

	workers := g.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var grp errgroup.Group
	grp.SetLimit(workers)
	for _, p := range paths {
		grp.Go(func() error {
			return convertFile(p, *out, *rename, opts)
		})
	}
	return grp.Wait()
}

func convertFile(path, dir, rename string, opts []cggtts.Option) error {
	c, diags, err := cggtts.LoadFile(path, opts...)
	if err != nil {
		countFile("convert", 0, diags, err)
		return err
	}
	name := filepath.Base(path)
	if rename != "" {
		lab, rcvr := rename, ""
		if len(rename) > 2 {
			lab, rcvr = rename[:2], rename[2:]
		}
		name = c.FileName(lab, rcvr)
	}
	target := filepath.Join(dir, name)
	wdiags, err := c.ToFile(target, opts...)
	countFile("convert", len(c.Tracks), append(diags, wdiags...), err)
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	log.Info(path, " -> ", target)
	return nil
}
