package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/offchainlabs/claimstake/claimmarket"
	"github.com/offchainlabs/claimstake/claimmarket/db"
	"github.com/offchainlabs/claimstake/events"
	"github.com/offchainlabs/claimstake/oracle"
)

func main() {
	if err := startup(); err != nil {
		log.Error("Error running claimstake", "err", err)
		os.Exit(1)
	}
}

func printSampleUsage() {
	progname := os.Args[0]
	fmt.Printf("\n")
	fmt.Printf("Sample usage:                  %s --help \n", progname)
}

func startup() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config, err := parseDaemonConfig(os.Args[1:])
	if err != nil {
		printSampleUsage()
		if !strings.Contains(err.Error(), "help requested") {
			fmt.Printf("%s\n", err.Error())
		}
		return nil
	}

	glogger := log.NewGlogHandler(log.StreamHandler(os.Stderr, log.TerminalFormat(false)))
	glogger.Verbosity(log.Lvl(config.LogLevel))
	log.Root().SetHandler(glogger)

	l1Client, err := ethclient.DialContext(ctx, config.L1.URL)
	if err != nil {
		return errors.Wrap(err, "error dialing L1 node")
	}
	chainID, err := l1Client.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "error fetching chain id")
	}
	if config.L1.ChainID != 0 && chainID.Uint64() != config.L1.ChainID {
		return errors.Errorf("connected to chain %v but expected chain %v", chainID, config.L1.ChainID)
	}

	privKey, err := crypto.HexToECDSA(config.L1.PrivateKey)
	if err != nil {
		return errors.Wrap(err, "error parsing custodian private key")
	}
	txOpts, err := bind.NewKeyedTransactorWithChainID(privKey, chainID)
	if err != nil {
		return err
	}

	oracleAddr := common.HexToAddress(config.OracleAddr)
	client, err := oracle.NewContractClient(oracleAddr, l1Client, txOpts)
	if err != nil {
		return err
	}
	vault, err := oracle.NewContractVault(common.HexToAddress(config.VaultAddr), l1Client, txOpts)
	if err != nil {
		return err
	}

	publishers := events.Publishers{events.LogPublisher{}}
	if config.Redis.Enable {
		redisPub, err := events.NewRedisPublisher(&config.Redis)
		if err != nil {
			return errors.Wrap(err, "error connecting to redis")
		}
		defer redisPub.Close()
		publishers = append(publishers, redisPub)
	}

	var store claimmarket.AuditStore
	if config.DBPath != "" {
		sqliteStore, err := db.NewSqliteStore(config.DBPath)
		if err != nil {
			return errors.Wrap(err, "error opening audit database")
		}
		defer sqliteStore.Close()
		store = sqliteStore
	}

	market, err := claimmarket.NewMarket(&config.Market, client, vault, publishers, store)
	if err != nil {
		return err
	}
	validator := claimmarket.NewCallbackValidator(market, oracleAddr)

	scanner, err := oracle.NewScanner(l1Client, oracleAddr, validator, config.ScanInterval)
	if err != nil {
		return err
	}
	scanner.Start(ctx)

	stackConf := node.DefaultConfig
	stackConf.DataDir = ""
	stackConf.HTTPHost = config.HTTP.Addr
	stackConf.HTTPPort = config.HTTP.Port
	stackConf.HTTPModules = []string{claimmarket.Namespace}
	stackConf.HTTPVirtualHosts = []string{"localhost"}
	stackConf.HTTPTimeouts = rpc.DefaultHTTPTimeouts
	stackConf.P2P = p2p.Config{
		ListenAddr:  "",
		NoDiscovery: true,
		NoDial:      true,
	}
	stack, err := node.New(&stackConf)
	if err != nil {
		return errors.Wrap(err, "error creating rpc stack")
	}
	stack.RegisterAPIs([]rpc.API{{
		Namespace: claimmarket.Namespace,
		Version:   "1.0",
		Service:   claimmarket.NewMarketAPI(market),
		Public:    true,
	}})
	if err := stack.Start(); err != nil {
		return errors.Wrap(err, "error starting rpc stack")
	}
	defer stack.Close()

	log.Info("Claimstake market running", "oracle", oracleAddr, "chain", chainID, "http", fmt.Sprintf("%s:%d", config.HTTP.Addr, config.HTTP.Port))

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	<-sigint
	log.Info("Shutting down because of sigint")
	return nil
}
