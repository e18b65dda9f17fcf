package claimmarket

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

type Config struct {
	// DefaultBond is the floor for the required stake, in wei of the wrapped
	// asset, as a decimal string. The effective bond is the larger of this
	// and the oracle's current minimum.
	DefaultBond string `koanf:"default-bond"`
	// Liveness is the dispute window forwarded to the oracle. The oracle
	// alone enforces it; the market does no timing arithmetic.
	Liveness   time.Duration `koanf:"liveness"`
	Identifier string        `koanf:"identifier"`
	Domain     string        `koanf:"domain"`
	// Custodian is this system's account: it owns every stake toward the
	// oracle, standing in for both the real claimant and challenger.
	Custodian      string `koanf:"custodian"`
	CallbackTarget string `koanf:"callback-target"`
	Arbitrator     string `koanf:"arbitrator"`
	Asset          string `koanf:"asset"`
}

var DefaultConfig = Config{
	DefaultBond: "100000000000000000", // 0.1 of the wrapped asset
	Liveness:    2 * time.Hour,
	Identifier:  "ASSERT_TRUTH",
	Domain:      "",
}

var TestConfig = Config{
	DefaultBond: "100000000000000000",
	Liveness:    time.Minute,
	Identifier:  "ASSERT_TRUTH",
	Domain:      "",
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".default-bond", DefaultConfig.DefaultBond, "floor for the required stake in wei of the wrapped asset")
	f.Duration(prefix+".liveness", DefaultConfig.Liveness, "dispute window forwarded to the oracle")
	f.String(prefix+".identifier", DefaultConfig.Identifier, "oracle identifier tag for new claims")
	f.String(prefix+".domain", DefaultConfig.Domain, "oracle domain tag for new claims")
	f.String(prefix+".custodian", DefaultConfig.Custodian, "address owning stakes toward the oracle")
	f.String(prefix+".callback-target", DefaultConfig.CallbackTarget, "address receiving oracle resolution callbacks")
	f.String(prefix+".arbitrator", DefaultConfig.Arbitrator, "arbitrator address for disputed claims")
	f.String(prefix+".asset", DefaultConfig.Asset, "wrapped asset token address")
}

func (c *Config) defaultBond() (*big.Int, error) {
	bond, ok := new(big.Int).SetString(c.DefaultBond, 10)
	if !ok || bond.Sign() < 0 {
		return nil, errors.Errorf("invalid default bond %q", c.DefaultBond)
	}
	return bond, nil
}

// tag32 right-pads an ASCII tag into a bytes32, the oracle's tag encoding.
func tag32(s string) common.Hash {
	var h common.Hash
	copy(h[:], s)
	return h
}
