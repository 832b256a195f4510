package cmd

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/paravirt/cryptodev/pkg/cryptodev"
	"github.com/paravirt/cryptodev/pkg/guest"
	"github.com/paravirt/cryptodev/pkg/remote"
)

func CryptCmd() cli.Command {
	return cli.Command{
		Name:      "crypt",
		UsageText: "cryptodev-agent crypt [options] HEXDATA",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "connect",
				Value: "tcp://localhost:9505",
				Usage: "Host agent data plane address",
			},
			cli.StringFlag{
				Name:  "key",
				Usage: "AES key in hex (16, 24 or 32 bytes)",
			},
			cli.StringFlag{
				Name:  "iv",
				Usage: "Initialization vector in hex (16 bytes), zeros when omitted",
			},
			cli.BoolFlag{
				Name:  "decrypt",
				Usage: "Decrypt instead of encrypt",
			},
			cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) {
			if err := runCrypt(c); err != nil {
				logrus.WithError(err).Fatal("Error running crypt command")
			}
		},
	}
}

func runCrypt(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one HEXDATA argument")
	}
	data, err := hex.DecodeString(c.Args().First())
	if err != nil {
		return errors.Wrap(err, "invalid data hex")
	}
	key, err := hex.DecodeString(c.String("key"))
	if err != nil {
		return errors.Wrap(err, "invalid key hex")
	}
	iv := make([]byte, cryptodev.IVSize)
	if s := c.String("iv"); s != "" {
		if iv, err = hex.DecodeString(s); err != nil {
			return errors.Wrap(err, "invalid iv hex")
		}
	}

	conn, err := remote.Dial(c.String("connect"))
	if err != nil {
		return errors.Wrapf(err, "failed to dial %v", c.String("connect"))
	}
	client := remote.NewClient(conn)
	defer func() {
		if err := client.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close client")
		}
	}()

	dev := guest.NewDevice(client.Queue())
	dev.Timeout = c.Duration("timeout")

	file, err := dev.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open crypto device")
	}
	defer func() {
		if err := file.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close crypto device")
		}
	}()

	session, err := file.CreateSession(cryptodev.CipherAESCBC, key)
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	defer func() {
		if err := file.DestroySession(session); err != nil {
			logrus.WithError(err).Warn("Failed to destroy session")
		}
	}()

	op := cryptodev.OpEncrypt
	if c.Bool("decrypt") {
		op = cryptodev.OpDecrypt
	}
	out, err := file.Crypt(session, op, data, iv)
	if err != nil {
		return errors.Wrap(err, "crypt operation failed")
	}

	fmt.Println(hex.EncodeToString(out))
	return nil
}
