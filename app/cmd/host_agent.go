package cmd

import (
	"context"
	"net/http"
	"os"

	"github.com/docker/go-units"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/paravirt/cryptodev/pkg/facility"
	"github.com/paravirt/cryptodev/pkg/host"
	"github.com/paravirt/cryptodev/pkg/remote"
	"github.com/paravirt/cryptodev/pkg/rest"
	"github.com/paravirt/cryptodev/pkg/util"
	"github.com/paravirt/cryptodev/pkg/vq"
)

func HostAgentCmd() cli.Command {
	return cli.Command{
		Name: "host-agent",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "listen",
				Value: "tcp://localhost:9505",
				Usage: "Data plane listen address, tcp://host:port or vsock://cid:port",
			},
			cli.StringFlag{
				Name:  "status-listen",
				Value: "localhost:9510",
				Usage: "REST status listen address",
			},
			cli.StringFlag{
				Name:  "lock-file",
				Value: "/var/run/cryptodev-agent.lock",
			},
			cli.StringFlag{
				Name:  "max-payload",
				Value: "1m",
				Usage: "Upper bound for a single wire segment",
			},
			cli.IntFlag{
				Name:  "queue-size",
				Value: 128,
				Usage: "Descriptor ring capacity",
			},
		},
		Action: func(c *cli.Context) {
			if err := startHostAgent(c); err != nil {
				logrus.WithError(err).Fatal("Error running host-agent command")
			}
		},
	}
}

func startHostAgent(c *cli.Context) error {
	fileLock := flock.New(c.String("lock-file"))
	locked, err := fileLock.TryLock()
	if err != nil {
		return errors.Wrapf(err, "failed to lock %v", c.String("lock-file"))
	}
	if !locked {
		return errors.Errorf("another host agent holds %v", c.String("lock-file"))
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			logrus.WithError(err).Warn("Failed to release lock file")
		}
	}()

	maxPayload, err := units.RAMInBytes(c.String("max-payload"))
	if err != nil {
		return errors.Wrapf(err, "invalid max-payload %v", c.String("max-payload"))
	}

	queue := vq.New(c.Int("queue-size"))
	fac := facility.New()
	agent := host.New(queue, fac)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := agent.Run(ctx); err != nil && err != context.Canceled {
			logrus.WithError(err).Error("Host agent dispatch loop failed")
		}
	}()

	instanceID := util.UUID()
	statusServer := rest.NewServer(agent, fac, instanceID)
	router := http.Handler(rest.NewRouter(statusServer))
	router = util.FilteredLoggingHandler(map[string]struct{}{
		"/ping":      {},
		"/v1/status": {},
	}, os.Stdout, router)
	go func() {
		logrus.Infof("Listening on status %v", c.String("status-listen"))
		if err := http.ListenAndServe(c.String("status-listen"), router); err != nil {
			logrus.WithError(err).Error("Status server failed")
		}
	}()

	ln, err := remote.Listen(c.String("listen"))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %v", c.String("listen"))
	}

	addShutdown(func() {
		queue.Close()
		if err := ln.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close listener")
		}
		if err := fileLock.Unlock(); err != nil {
			logrus.WithError(err).Warn("Failed to release lock file")
		}
	})

	logrus.Infof("Host agent %v listening on data %v", instanceID, c.String("listen"))
	server := remote.NewServer(queue, uint32(maxPayload))
	if err := server.Serve(ln); err != nil {
		select {
		case <-queue.Done():
			return nil
		default:
			return err
		}
	}
	return nil
}
