package main

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/claimstake/claimmarket"
	"github.com/offchainlabs/claimstake/events"
)

type DaemonConfig struct {
	ConfFile     string             `koanf:"conf-file"`
	EnvPrefix    string             `koanf:"env-prefix"`
	LogLevel     int                `koanf:"log-level"`
	HTTP         HTTPConfig         `koanf:"http"`
	L1           L1Config           `koanf:"l1"`
	Market       claimmarket.Config `koanf:"market"`
	Redis        events.RedisConfig `koanf:"redis"`
	DBPath       string             `koanf:"db-path"`
	OracleAddr   string             `koanf:"oracle-address"`
	VaultAddr    string             `koanf:"vault-address"`
	ScanInterval time.Duration      `koanf:"scan-interval"`
}

type L1Config struct {
	URL        string `koanf:"url"`
	ChainID    uint64 `koanf:"chain-id"`
	PrivateKey string `koanf:"private-key"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
	Port int    `koanf:"port"`
}

var DaemonConfigDefault = DaemonConfig{
	LogLevel: int(log.LvlInfo),
	HTTP: HTTPConfig{
		Addr: "localhost",
		Port: 9372,
	},
	L1: L1Config{
		ChainID: 0,
	},
	Market:       claimmarket.DefaultConfig,
	Redis:        events.DefaultRedisConfig,
	DBPath:       "",
	ScanInterval: 15 * time.Second,
}

func DaemonConfigAddOptions(f *flag.FlagSet) {
	f.String("conf-file", DaemonConfigDefault.ConfFile, "name of JSON configuration file")
	f.String("env-prefix", DaemonConfigDefault.EnvPrefix, "environment variables with given prefix will be loaded as configuration values")
	f.Int("log-level", DaemonConfigDefault.LogLevel, "log level")
	f.String("http.addr", DaemonConfigDefault.HTTP.Addr, "HTTP-RPC server listening interface")
	f.Int("http.port", DaemonConfigDefault.HTTP.Port, "HTTP-RPC server listening port")
	f.String("l1.url", DaemonConfigDefault.L1.URL, "layer 1 ethereum node RPC URL")
	f.Uint64("l1.chain-id", DaemonConfigDefault.L1.ChainID, "if set other than 0, will be used to validate the L1 connection")
	f.String("l1.private-key", DaemonConfigDefault.L1.PrivateKey, "private key of the custodian account")
	claimmarket.ConfigAddOptions("market", f)
	events.RedisConfigAddOptions("redis", f)
	f.String("db-path", DaemonConfigDefault.DBPath, "path to the sqlite audit database, empty disables the audit trail")
	f.String("oracle-address", DaemonConfigDefault.OracleAddr, "address of the optimistic oracle contract")
	f.String("vault-address", DaemonConfigDefault.VaultAddr, "address of the custody vault contract")
	f.Duration("scan-interval", DaemonConfigDefault.ScanInterval, "how often to poll for oracle events")
}

func parseDaemonConfig(args []string) (*DaemonConfig, error) {
	f := flag.NewFlagSet("claimstake", flag.ContinueOnError)
	DaemonConfigAddOptions(f)
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, errors.Errorf("unexpected argument: %s", f.Arg(0))
	}

	k := koanf.New(".")
	if confFile, _ := f.GetString("conf-file"); confFile != "" {
		if err := k.Load(file.Provider(confFile), json.Parser()); err != nil {
			return nil, errors.Wrap(err, "error loading config file")
		}
	}
	if prefix, _ := f.GetString("env-prefix"); prefix != "" {
		// CLAIMSTAKE_MARKET__DEFAULT_BOND maps to market.default-bond
		err := k.Load(env.Provider(prefix+"_", ".", func(name string) string {
			lower := strings.ToLower(strings.TrimPrefix(name, prefix+"_"))
			return strings.ReplaceAll(strings.ReplaceAll(lower, "__", "."), "_", "-")
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, "error loading environment variables")
		}
	}
	// command line flags take precedence
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, errors.Wrap(err, "error loading command line flags")
	}

	var config DaemonConfig
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc()),
		Result:           &config,
		WeaklyTypedInput: true,
	}
	err := k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{DecoderConfig: &decoderConfig})
	if err != nil {
		return nil, errors.Wrap(err, "error parsing configuration")
	}
	return &config, nil
}
