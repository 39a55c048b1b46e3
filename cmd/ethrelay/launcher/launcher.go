package launcher

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-ethrelay/flags"
)

var (
	// Git SHA1 commit hash of the release (set via linker flags).
	gitCommit = ""

	app = flags.NewApp(gitCommit, "trust-minimized relay of Ethash headers, transfer proofs and undos")
)

var dumpConfigCommand = cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[dumpfile]",
	Description: `The dumpconfig command shows configuration values as TOML, ready for --config.`,
}

func init() {
	app.Action = runRelay
	app.Commands = []cli.Command{
		dumpConfigCommand,
	}
}

// Launch parses args and runs the relay until interrupted.
func Launch(args []string) error {
	return app.Run(args)
}

// runRelay is the default command: it assembles the relay, opens its
// endpoints and blocks until SIGINT or SIGTERM.
func runRelay(ctx *cli.Context) error {
	if args := ctx.Args(); len(args) > 0 {
		return cli.NewExitError("invalid command: "+args[0], 1)
	}
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Node.Logging); err != nil {
		return err
	}

	n, err := makeRelayNode(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	srv, err := startServers(cfg, n.Node)
	if err != nil {
		return err
	}
	defer srv.Stop()

	n.Start()
	last, err := n.Headers.LastStored()
	if err != nil {
		return err
	}
	log.Info("Relay started", "name", cfg.Node.Name, "network", cfg.Relay.Network, "datadir", cfg.Node.DataDir, "head", last)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	sig := <-sigc
	log.Info("Got interrupt, shutting down...", "signal", sig)
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	_, err = dump.Write(out)
	return err
}
