package main

import (
	"fmt"

	"github.com/15226124477/cggtts"
	"github.com/midbel/cli"
	log "github.com/sirupsen/logrus"
)

type checkCmd struct{}

func (checkCmd) Run(args []string) error {
	var (
		g   globals
		set = cli.NewFlagSet("check")
		ext = set.String("ext", "", "extension of files when scanning directories")
	)
	g.register(set)
	if err := set.Parse(args); err != nil {
		return err
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

	failed := 0
	for _, res := range cggtts.LoadFiles(paths, g.cfg.Workers, opts...) {
		tracks := 0
		if res.File != nil {
			tracks = len(res.File.Tracks)
		}
		countFile("check", tracks, res.Diagnostics, res.Err)
		if res.Err != nil {
			failed++
			fmt.Printf("%s: FAIL %s\n", res.Path, res.Err)
			continue
		}
		fmt.Printf("%s: %d tracks, %s, %d problem(s)\n", res.Path, tracks, res.File.Constellation(), len(res.Diagnostics))
		for _, d := range res.Diagnostics {
			fmt.Printf("  %s\n", d)
		}
	}
	log.Info("检查文件数:", len(paths), " 失败:", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be read", failed, len(paths))
	}
	return nil
}
