package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/paravirt/cryptodev/app/cmd"
	"github.com/paravirt/cryptodev/meta"
)

// Following variables should be filled in by the compiler
var (
	Version   string
	GitCommit string
	BuildDate string
)

func main() {
	meta.Version = Version
	meta.GitCommit = GitCommit
	meta.BuildDate = BuildDate

	a := cli.NewApp()
	a.Name = "cryptodev-agent"
	a.Usage = "paravirtualized crypto device agents"
	a.Version = Version
	a.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			logrus.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	a.Flags = []cli.Flag{
		cli.BoolFlag{
			Name: "debug",
		},
	}
	a.Commands = []cli.Command{
		cmd.HostAgentCmd(),
		cmd.CryptCmd(),
		cmd.VersionCmd(),
	}
	if err := a.Run(os.Args); err != nil {
		logrus.Fatal("Error when executing command: ", err)
	}
}
