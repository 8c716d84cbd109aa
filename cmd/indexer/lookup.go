package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"swappiIndexer/internal/chain"
	"swappiIndexer/internal/config"
	"swappiIndexer/internal/dex"
	"swappiIndexer/internal/network"
)

func runToken(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLookup(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	token, err := parseHexAddress(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var caller dex.ContractCaller
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	}

	resolver, err := dex.NewTokenResolver(cfg.Network, caller, logger)
	if err != nil {
		return err
	}
	meta, err := resolver.Resolve(ctx, token)
	if err != nil {
		return err
	}
	return printJSON(meta)
}

func runPair(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLookup(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	a, err := parseHexAddress(args[0])
	if err != nil {
		return err
	}
	b, err := parseHexAddress(args[1])
	if err != nil {
		return err
	}

	registry, err := network.NewRegistry(cfg.Network)
	if err != nil {
		return err
	}
	pair := registry.FindPair(a, b)
	return printJSON(map[string]string{
		"network": string(cfg.Network),
		"pair":    network.Key(pair),
	})
}

func parseHexAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

func printJSON(value interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
