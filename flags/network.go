package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NetworkFlags select the relayed source chain and its trusted genesis.

func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "network",
			Usage: "Relayed source chain rules (main|test|fake)",
			Value: "main",
		},
		cli.StringFlag{
			Name:  "genesis",
			Usage: "JSON file holding the trusted genesis header and its total difficulty",
		},
		cli.BoolFlag{
			Name:  "fakenet",
			Usage: "Run against a locally mined fake source chain (in-memory)",
		},
		cli.DurationFlag{
			Name:  "fakenet.period",
			Usage: "Mine and relay a fake block this often (0 = never)",
		},
	}
}

// RelayFlags configure the destination side of the relay.
func RelayFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "relay.pool",
			Usage: "Pool account inbound transfers pay into and undos pay back from",
		},
		cli.StringFlag{
			Name:  "relay.feerecipient",
			Usage: "Account credited with verification fees (empty = fees stay with the requester)",
		},
		cli.StringFlag{
			Name:  "relay.fee",
			Usage: "Fixed verification fee in wei (empty = gas price times verification gas)",
		},
	}
}
