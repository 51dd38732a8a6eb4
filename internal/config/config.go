package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Fixed network parameters of the Sepolia flow. Every one of them can be
// overridden from the environment.
const (
	DefaultChainID      = 11155111
	DefaultRelayURL     = "https://relay-sepolia.flashbots.net"
	DefaultRecipient    = "0x510CB00000074c9f5063e81bd4647d00905Abd11"
	DefaultValueWei     = "100"
	DefaultSimTimestamp = 1731851886 // 2024-11-17 21:58:06 UTC
	DefaultMaxAttempts  = 100
)

// ErrMissingSetting is returned when a required environment value is absent.
var ErrMissingSetting = errors.New("missing required setting")

// NonceMode selects how the account nonce is obtained for each attempt.
type NonceMode string

const (
	NonceRefetch NonceMode = "refetch" // fetch from chain before every bundle
	NonceReserve NonceMode = "reserve" // fetch once, reuse for every attempt
)

// TargetMode selects how the target block of an attempt is derived.
type TargetMode string

const (
	TargetFixed TargetMode = "fixed" // base height + attempt index
	TargetHead  TargetMode = "head"  // never below current head + 1
)

// ErrorPolicy decides whether a failed attempt step ends the run or
// moves on to the next target block.
type ErrorPolicy string

const (
	ErrorAbort ErrorPolicy = "abort"
	ErrorSkip  ErrorPolicy = "skip"
)

func (e ErrorPolicy) valid() bool { return e == ErrorAbort || e == ErrorSkip }

// Settings keeps all configuration options.
// Naming mirrors the env keys.
type Settings struct {
	RPCURL             string
	PrivateKeyHex      string
	FlashbotsAuthPKHex string // empty: reuse PrivateKeyHex
	ChainID            *big.Int
	RelayURL           string
	Recipient          common.Address
	ValueWei           *big.Int
	SimTimestamp       uint64
	MaxAttempts        int

	TipGwei    int64
	BasefeeMul int64
	GasLimit   uint64

	PollInterval     time.Duration
	InclusionTimeout time.Duration

	NonceMode     NonceMode
	TargetMode    TargetMode
	OnBuildError  ErrorPolicy
	OnSubmitError ErrorPolicy

	Simulate    bool
	LogDev      bool
	MetricsAddr string
}

// AuthKeyHex is the key used to sign relay requests.
func (s Settings) AuthKeyHex() string {
	if strings.TrimSpace(s.FlashbotsAuthPKHex) != "" {
		return s.FlashbotsAuthPKHex
	}
	return s.PrivateKeyHex
}

// LoadDotEnv loads .env, then .env.local over it, then the optional extra file.
// Only the extra file is required to exist.
func LoadDotEnv(extra string) error {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
	if strings.TrimSpace(extra) != "" {
		if err := godotenv.Overload(extra); err != nil {
			return fmt.Errorf("env file %s: %w", extra, err)
		}
	}
	return nil
}

// keys lists every setting together with the env names it is read from.
// Both UPPER_CASE and lower_case spellings are accepted.
var keys = []string{
	"rpc_url", "private_key", "flashbots_auth_pk", "chain_id", "relay_url",
	"recipient", "value_wei", "sim_timestamp", "max_attempts",
	"tip_gwei", "basefee_mul", "gas_limit",
	"poll_interval", "inclusion_timeout",
	"nonce_mode", "target_mode", "on_build_error", "on_submit_error",
	"simulate", "log_dev", "metrics_addr",
}

func newViper() *viper.Viper {
	v := viper.New()
	for _, k := range keys {
		_ = v.BindEnv(k, strings.ToUpper(k), k)
	}
	v.SetDefault("chain_id", fmt.Sprint(DefaultChainID))
	v.SetDefault("relay_url", DefaultRelayURL)
	v.SetDefault("recipient", DefaultRecipient)
	v.SetDefault("value_wei", DefaultValueWei)
	v.SetDefault("sim_timestamp", DefaultSimTimestamp)
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("tip_gwei", 0)
	v.SetDefault("basefee_mul", 2)
	v.SetDefault("gas_limit", 0)
	v.SetDefault("poll_interval", "2s")
	v.SetDefault("inclusion_timeout", "0s")
	v.SetDefault("nonce_mode", string(NonceRefetch))
	v.SetDefault("target_mode", string(TargetFixed))
	v.SetDefault("on_build_error", string(ErrorAbort))
	v.SetDefault("on_submit_error", string(ErrorAbort))
	v.SetDefault("simulate", true)
	v.SetDefault("log_dev", true)
	return v
}

// Load reads settings from the environment and validates them.
// It never touches the network.
func Load() (Settings, error) {
	v := newViper()
	get := func(k string) string { return strings.TrimSpace(v.GetString(k)) }

	st := Settings{
		RPCURL:             get("rpc_url"),
		PrivateKeyHex:      get("private_key"),
		FlashbotsAuthPKHex: get("flashbots_auth_pk"),
		RelayURL:           get("relay_url"),
		SimTimestamp:       v.GetUint64("sim_timestamp"),
		MaxAttempts:        v.GetInt("max_attempts"),
		TipGwei:            v.GetInt64("tip_gwei"),
		BasefeeMul:         v.GetInt64("basefee_mul"),
		GasLimit:           v.GetUint64("gas_limit"),
		PollInterval:       v.GetDuration("poll_interval"),
		InclusionTimeout:   v.GetDuration("inclusion_timeout"),
		NonceMode:          NonceMode(strings.ToLower(get("nonce_mode"))),
		TargetMode:         TargetMode(strings.ToLower(get("target_mode"))),
		OnBuildError:       ErrorPolicy(strings.ToLower(get("on_build_error"))),
		OnSubmitError:      ErrorPolicy(strings.ToLower(get("on_submit_error"))),
		Simulate:           v.GetBool("simulate"),
		LogDev:             v.GetBool("log_dev"),
		MetricsAddr:        get("metrics_addr"),
	}

	if st.PrivateKeyHex == "" {
		return Settings{}, fmt.Errorf("%w: PRIVATE_KEY", ErrMissingSetting)
	}
	if st.RPCURL == "" {
		return Settings{}, fmt.Errorf("%w: RPC_URL", ErrMissingSetting)
	}

	chainID, ok := parseBig(get("chain_id"))
	if !ok || chainID.Sign() <= 0 {
		return Settings{}, fmt.Errorf("invalid CHAIN_ID %q", get("chain_id"))
	}
	st.ChainID = chainID

	value, ok := parseBig(get("value_wei"))
	if !ok || value.Sign() < 0 {
		return Settings{}, fmt.Errorf("invalid VALUE_WEI %q", get("value_wei"))
	}
	st.ValueWei = value

	rcpt := get("recipient")
	if !common.IsHexAddress(rcpt) {
		return Settings{}, fmt.Errorf("invalid RECIPIENT %q", rcpt)
	}
	st.Recipient = common.HexToAddress(rcpt)

	if err := st.Validate(); err != nil {
		return Settings{}, err
	}
	return st, nil
}

// Validate checks keys, URLs and enum values.
func (s Settings) Validate() error {
	if _, err := gethcrypto.HexToECDSA(strip0x(s.PrivateKeyHex)); err != nil {
		return fmt.Errorf("PRIVATE_KEY: %w", err)
	}
	if s.FlashbotsAuthPKHex != "" {
		if _, err := gethcrypto.HexToECDSA(strip0x(s.FlashbotsAuthPKHex)); err != nil {
			return fmt.Errorf("FLASHBOTS_AUTH_PK: %w", err)
		}
	}
	if err := checkURL("RPC_URL", s.RPCURL, "http", "https", "ws", "wss"); err != nil {
		return err
	}
	if err := checkURL("RELAY_URL", s.RelayURL, "http", "https"); err != nil {
		return err
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("MAX_ATTEMPTS must be > 0, got %d", s.MaxAttempts)
	}
	if s.BasefeeMul <= 0 {
		return fmt.Errorf("BASEFEE_MUL must be > 0, got %d", s.BasefeeMul)
	}
	if s.TipGwei < 0 {
		return fmt.Errorf("TIP_GWEI must be >= 0, got %d", s.TipGwei)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0, got %s", s.PollInterval)
	}
	switch s.NonceMode {
	case NonceRefetch, NonceReserve:
	default:
		return fmt.Errorf("invalid NONCE_MODE %q", s.NonceMode)
	}
	switch s.TargetMode {
	case TargetFixed, TargetHead:
	default:
		return fmt.Errorf("invalid TARGET_MODE %q", s.TargetMode)
	}
	if !s.OnBuildError.valid() {
		return fmt.Errorf("invalid ON_BUILD_ERROR %q", s.OnBuildError)
	}
	if !s.OnSubmitError.valid() {
		return fmt.Errorf("invalid ON_SUBMIT_ERROR %q", s.OnSubmitError)
	}
	return nil
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", name, raw)
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported scheme %q", name, u.Scheme)
}

func parseBig(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	return new(big.Int).SetString(s, 0) // "11155111" or "0xaa36a7"
}

func strip0x(s string) string { return strings.TrimPrefix(strings.TrimSpace(s), "0x") }
