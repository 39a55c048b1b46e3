package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NodeFlags holds knobs specific to the local node instance (identity, storage).

func NodeFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "identity",
			Usage: "Custom node name used in logs",
		},
		cli.StringFlag{
			Name:  "db.preset",
			Usage: "Storage preset (default|lite|full|badger)",
			Value: "default",
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to database caches",
			Value: 256,
		},
	}
}

// AllFlags returns every flag the node command accepts.
func AllFlags() []cli.Flag {
	var all []cli.Flag
	all = append(all, CommonFlags()...)
	all = append(all, NetworkFlags()...)
	all = append(all, RelayFlags()...)
	all = append(all, NodeFlags()...)
	return all
}
