// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"

	"github.com/blockvault/blockvaultd/chain"
	"github.com/blockvault/blockvaultd/schema"
	"github.com/blockvault/blockvaultd/scripthistory"
	"github.com/blockvault/blockvaultd/storage"
)

var version = "zero" // do not change this value

func main() {
	defer exitwithstatus.Handler()

	app := cli.NewApp()
	app.Name = "blockvault-dumpdb"
	app.Usage = "inspect a blockvault database"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "database, d",
			Usage: "database directory",
		},
		cli.StringFlag{
			Name:  "chain, c",
			Value: chain.Main,
			Usage: "chain name: Main, Test or Regtest",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "info",
			Usage:  "show the database info records",
			Action: runInfo,
		},
		{
			Name:      "block",
			Usage:     "show the block at a height",
			ArgsUsage: "HEIGHT",
			Action:    runBlock,
		},
		{
			Name:      "history",
			Usage:     "show the history of an output script",
			ArgsUsage: "HEX-SCRIPT",
			Action:    runHistory,
		},
	}

	if err := app.Run(os.Args); nil != err {
		exitwithstatus.Message("error: %s", err)
	}
}

func openDB(c *cli.Context) (*storage.BlockDatabase, error) {
	dir := c.GlobalString("database")
	if "" == dir {
		return nil, fmt.Errorf("a database directory is required")
	}

	// quiet logging: critical messages only, to a file in the temp directory
	err := logger.Initialise(logger.Configuration{
		Directory: os.TempDir(),
		File:      "blockvault-dumpdb.log",
		Size:      1048576,
		Count:     2,
		Levels:    map[string]string{logger.DefaultTag: "critical"},
	})
	if nil != err {
		return nil, err
	}

	params, err := chain.Select(c.GlobalString("chain"))
	if nil != err {
		return nil, err
	}
	return storage.Open(dir, params, schema.DBTypeWhatever, schema.PruneWhatever)
}

func runInfo(c *cli.Context) error {
	db, err := openDB(c)
	if nil != err {
		return err
	}
	defer db.Close()

	for _, sel := range []schema.Database{schema.Headers, schema.BlkData} {
		info, err := db.GetDBInfo(sel)
		if nil != err {
			return err
		}
		fmt.Printf("%s:\n", sel)
		fmt.Printf("  magic:     %x\n", info.Magic)
		fmt.Printf("  type:      %s\n", info.Type)
		fmt.Printf("  prune:     %s\n", info.Prune)
		fmt.Printf("  version:   %08x\n", info.Version)
		fmt.Printf("  top:       %d\n", info.TopBlockHgt)
		fmt.Printf("  top hash:  %v\n", info.TopBlockHash)
	}
	return nil
}

func runBlock(c *cli.Context) error {
	db, err := openDB(c)
	if nil != err {
		return err
	}
	defer db.Close()

	var height uint32
	_, err = fmt.Sscanf(c.Args().First(), "%d", &height)
	if nil != err {
		return fmt.Errorf("bad height: %q", c.Args().First())
	}

	sbh, err := db.GetStoredHeader(height, storage.DupSentinel, true)
	if nil != err {
		return err
	}
	fmt.Printf("block %d (dup %d): %v\n", sbh.Height, sbh.DupID, sbh.Hash)
	fmt.Printf("  transactions: %d  bytes: %d\n", sbh.NumTx, sbh.NumBytes)
	for i := uint16(0); i < uint16(len(sbh.Txs)); i += 1 {
		stx := sbh.Txs[i]
		fmt.Printf("  tx %3d: %v  outputs: %d\n", i, stx.Hash, stx.NumTxOut)
	}
	return nil
}

func runHistory(c *cli.Context) error {
	db, err := openDB(c)
	if nil != err {
		return err
	}
	defer db.Close()

	script, err := hex.DecodeString(c.Args().First())
	if nil != err {
		return fmt.Errorf("bad script hex: %q", c.Args().First())
	}

	scrAddr := scripthistory.FromScript(script)
	fmt.Printf("scrAddr: %s\n", scrAddr)

	ssh, err := db.GetScriptHistory(scrAddr, 0, schema.MaxHeight)
	if nil != err {
		return err
	}
	fmt.Printf("scanned up to: %d  txio count: %d  unspent: %d\n",
		ssh.AlreadyScannedUpTo, ssh.TotalTxioCount, ssh.TotalUnspent)

	for _, sub := range ssh.OrderedShards() {
		fmt.Printf("  height %d (dup %d):\n", sub.Hgtx.Height(), sub.Hgtx.DupID())
		for _, txio := range sub.Txios {
			fmt.Printf("    %-8s %12d  tx %5d out %3d\n",
				kindName(txio.Kind), txio.Value, txio.Key.TxIndex(), txio.Key.TxOutIndex())
		}
	}
	return nil
}

func kindName(kind scripthistory.TxioKind) string {
	switch kind {
	case scripthistory.TxioReceived:
		return "received"
	case scripthistory.TxioSpent:
		return "spent"
	case scripthistory.TxioMultisig:
		return "multisig"
	case scripthistory.TxioFromSelf:
		return "fromself"
	default:
		return "unknown"
	}
}
