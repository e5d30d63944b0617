package main

import (
	"fmt"
	"os"

	"github.com/fxnlabs/gpubench/fixtures"
	"github.com/urfave/cli/v2"
)

func initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "Write a commented configuration file with the default values",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Value: "gpubench.yaml",
				Usage: "Write the template to `FILE`",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			return writeConfigTemplate(c.String("output"), c.Bool("force"))
		},
	}
}

func writeConfigTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}
	return os.WriteFile(path, fixtures.ConfigTemplate, 0o644)
}
