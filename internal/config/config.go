// Package config loads the process-wide configuration once at startup.
//
// Precedence, highest first:
//  1. GASMORPH_* environment variables
//  2. ~/.gasmorph/config.toml
//  3. built-in defaults
package config

import (
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/gasmorph/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".gasmorph"
	envPrefix  = "GASMORPH"
)

const (
	keyChainID         = "network.chain_id"
	keyRPCURL          = "network.rpc_url"
	keyBundlerURL      = "network.bundler_url"
	keyEntryPoint      = "network.entry_point"
	keyNFT             = "contracts.nft"
	keyPaymaster       = "contracts.paymaster"
	keyOwner           = "contracts.owner"
	keyAllowList       = "sponsorship.allow_list"
	keySessionDuration = "sponsorship.session_duration"
	keyMaxAttempts     = "sponsorship.max_attempts"
	keyRetryBackoff    = "sponsorship.retry_backoff"
	keySignerURL       = "signer.url"
	keySignerSecretRef = "signer.jwt_secret_ref"
	keyWalletRef       = "wallet.key_ref"
	keyDataDir         = "storage.data_dir"
	keyRequestTimeout  = "timeouts.request"
	keyRefresh         = "timeouts.refresh"
)

type Network struct {
	ChainID    *big.Int
	RPCURL     string
	BundlerURL string
	EntryPoint common.Address
}

type Contracts struct {
	NFT       common.Address
	Paymaster common.Address
	// Owner is the privileged signer and the only account allowed to issue
	// sessions.
	Owner common.Address
}

type Sponsorship struct {
	AllowList       domain.AllowList
	SessionDuration time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
}

type Signer struct {
	URL          string
	JWTSecretRef string
}

// Config is immutable after Load and passed explicitly to every component.
type Config struct {
	Network         Network
	Contracts       Contracts
	Sponsorship     Sponsorship
	Signer          Signer
	WalletKeyRef    string
	DataDir         string
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
}

func (c Config) ConnectionsPath() string {
	return filepath.Join(c.DataDir, "connections.toml")
}

func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

func (c Config) SecretsDir() string {
	return filepath.Join(c.DataDir, "secrets")
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault(keyChainID, 10143)
	v.SetDefault(keyRPCURL, "https://testnet-rpc.monad.xyz")
	v.SetDefault(keyBundlerURL, "https://testnet-rpc.monad.xyz")
	v.SetDefault(keyEntryPoint, "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	v.SetDefault(keyNFT, "0x07366b687f74C1B6FA6f5Aa21C76678ea7F11F89")
	v.SetDefault(keyPaymaster, "0x9ac77eA1280fF4dCf89b2D0f47bd15c396898945")
	v.SetDefault(keyOwner, "0xa526F5D0c2627C099Ca83AE3A8F5d937B9C85fB2")
	v.SetDefault(keyAllowList, []string{
		"0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b6",
		"0x1234567890123456789012345678901234567890",
	})
	v.SetDefault(keySessionDuration, "120s")
	v.SetDefault(keyMaxAttempts, 3)
	v.SetDefault(keyRetryBackoff, "1s")
	v.SetDefault(keySignerURL, "http://127.0.0.1:8551")
	v.SetDefault(keySignerSecretRef, "gasmorph://signer/jwt_secret")
	v.SetDefault(keyWalletRef, "gasmorph://wallet/default")
	v.SetDefault(keyDataDir, filepath.Join(home, configDir))
	v.SetDefault(keyRequestTimeout, "15s")
	v.SetDefault(keyRefresh, "30s")
}

// Load reads ~/.gasmorph/config.toml when present and overlays GASMORPH_*
// environment variables, e.g. GASMORPH_NETWORK_RPC_URL.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	setDefaults(v, home)
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(filepath.Join(home, configDir))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	var errs []error
	address := func(key string) common.Address {
		parsed, err := domain.ParseAddress(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return parsed
	}

	cfg := Config{
		Network: Network{
			ChainID:    big.NewInt(v.GetInt64(keyChainID)),
			RPCURL:     strings.TrimSpace(v.GetString(keyRPCURL)),
			BundlerURL: strings.TrimSpace(v.GetString(keyBundlerURL)),
			EntryPoint: address(keyEntryPoint),
		},
		Contracts: Contracts{
			NFT:       address(keyNFT),
			Paymaster: address(keyPaymaster),
			Owner:     address(keyOwner),
		},
		Sponsorship: Sponsorship{
			AllowList:       domain.NewAllowList(allowListEntries(v)...),
			SessionDuration: v.GetDuration(keySessionDuration),
			MaxAttempts:     v.GetInt(keyMaxAttempts),
			RetryBackoff:    v.GetDuration(keyRetryBackoff),
		},
		Signer: Signer{
			URL:          strings.TrimSpace(v.GetString(keySignerURL)),
			JWTSecretRef: v.GetString(keySignerSecretRef),
		},
		WalletKeyRef:    v.GetString(keyWalletRef),
		DataDir:         v.GetString(keyDataDir),
		RequestTimeout:  v.GetDuration(keyRequestTimeout),
		RefreshInterval: v.GetDuration(keyRefresh),
	}

	for _, entry := range allowListEntries(v) {
		if _, err := domain.ParseAddress(entry); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", keyAllowList, err))
		}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// allowListEntries accepts a TOML array or a comma separated env value.
func allowListEntries(v *viper.Viper) []string {
	var entries []string
	for _, raw := range v.GetStringSlice(keyAllowList) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				entries = append(entries, part)
			}
		}
	}
	return entries
}

func (c Config) Validate() error {
	var errs []error

	if c.Network.ChainID == nil || c.Network.ChainID.Sign() <= 0 {
		errs = append(errs, errors.New("network.chain_id must be positive"))
	}
	for key, raw := range map[string]string{keyRPCURL: c.Network.RPCURL, keyBundlerURL: c.Network.BundlerURL, keySignerURL: c.Signer.URL} {
		if err := validateEndpoint(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("timeouts.request must be positive"))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("timeouts.refresh must be positive"))
	}
	if c.Sponsorship.SessionDuration < time.Second {
		errs = append(errs, errors.New("sponsorship.session_duration must be at least 1s"))
	}
	if c.Sponsorship.MaxAttempts <= 0 || c.Sponsorship.MaxAttempts > domain.MaxMintAttempts {
		errs = append(errs, fmt.Errorf("sponsorship.max_attempts must be between 1 and %d", domain.MaxMintAttempts))
	}
	if c.Sponsorship.RetryBackoff < 0 {
		errs = append(errs, errors.New("sponsorship.retry_backoff must not be negative"))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("storage.data_dir is empty"))
	}

	return errors.Join(errs...)
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("endpoint is empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("endpoint has no host")
	}
	return nil
}
