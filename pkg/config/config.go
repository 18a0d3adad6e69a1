package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names shared by the signer and the verifier server
const (
	EnvEnvironment        = "MSGSIGN_ENVIRONMENT"
	EnvPrivateKey         = "MSGSIGN_PRIVATE_KEY"
	EnvChainID            = "MSGSIGN_CHAIN_ID"
	EnvKeyBackend         = "MSGSIGN_KEY_BACKEND"
	EnvKMSKeyID           = "MSGSIGN_KMS_KEY_ID"
	EnvAWSRegion          = "MSGSIGN_AWS_REGION"
	EnvPort               = "MSGSIGN_PORT"
	EnvTrustedAddresses   = "MSGSIGN_TRUSTED_ADDRESSES"
	EnvTrustedFile        = "MSGSIGN_TRUSTED_ADDRESSES_FILE"
	EnvFreshnessWindow    = "MSGSIGN_FRESHNESS_WINDOW"
	EnvMaxFutureSkew      = "MSGSIGN_MAX_FUTURE_SKEW"
	EnvPersistenceType    = "MSGSIGN_PERSISTENCE_TYPE"
	EnvDataPath           = "MSGSIGN_DATA_PATH"
	EnvRedisAddress       = "MSGSIGN_REDIS_ADDRESS"
	EnvRedisPassword      = "MSGSIGN_REDIS_PASSWORD"
	EnvRedisDB            = "MSGSIGN_REDIS_DB"
	EnvRedisKeyPrefix     = "MSGSIGN_REDIS_KEY_PREFIX"
	EnvRateLimitPerMinute = "MSGSIGN_RATE_LIMIT_PER_MINUTE"
	EnvAdminToken         = "MSGSIGN_ADMIN_TOKEN"
	EnvTrustedProxies     = "MSGSIGN_TRUSTED_PROXIES"
	EnvServerURL          = "MSGSIGN_SERVER_URL"
	EnvVerbose            = "MSGSIGN_VERBOSE"
	EnvLogFormat          = "MSGSIGN_LOG_FORMAT"
)

const (
	// DefaultFreshnessWindow is the maximum age of a signed message timestamp
	DefaultFreshnessWindow = 5 * time.Minute

	// DefaultMaxFutureSkew bounds how far ahead of the verifier clock a
	// signed timestamp may be
	DefaultMaxFutureSkew = 5 * time.Minute

	DefaultPort               = 8080
	DefaultRateLimitPerMinute = 600
	DefaultRateLimitBurst     = 50
)

type Environment string

const (
	Environment_Test       Environment = "test"
	Environment_Production Environment = "production"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
	ChainId_ArbitrumOne     ChainId = 42161
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
	ChainName_ArbitrumOne     ChainName = "arbitrum-one"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
	ChainId_ArbitrumOne:     ChainName_ArbitrumOne,
}

var ChainIdToExplorer = map[ChainId]string{
	ChainId_EthereumMainnet: "https://etherscan.io",
	ChainId_EthereumSepolia: "https://sepolia.etherscan.io",
	ChainId_ArbitrumOne:     "https://arbiscan.io",
}

// chains a signer may be configured for in each environment
var environmentChains = map[Environment][]ChainId{
	Environment_Test:       {ChainId_EthereumSepolia, ChainId_EthereumAnvil},
	Environment_Production: {ChainId_ArbitrumOne, ChainId_EthereumMainnet},
}

// IsChainAllowed reports whether chainId may be used in the given environment
func IsChainAllowed(env Environment, chainId ChainId) bool {
	for _, c := range environmentChains[env] {
		if c == chainId {
			return true
		}
	}
	return false
}

// GetChainName returns the configured name, or a generic one for unknown chains
func GetChainName(chainId ChainId) ChainName {
	if name, ok := ChainIdToName[chainId]; ok {
		return name
	}
	return ChainName(fmt.Sprintf("chain-%d", chainId))
}

type KeyBackend string

const (
	KeyBackend_Local  KeyBackend = "local"
	KeyBackend_AWSKMS KeyBackend = "aws-kms"
)

// SignerConfig configures the client-side message signer
type SignerConfig struct {
	Environment Environment `json:"environment" yaml:"environment"`
	ChainID     ChainId     `json:"chainId" yaml:"chainId"`

	KeyBackend KeyBackend `json:"keyBackend" yaml:"keyBackend"`
	// PrivateKey is a hex encoded secp256k1 key, used by the local backend
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
	// KMSKeyId and AWSRegion are used by the aws-kms backend
	KMSKeyId  string `json:"kmsKeyId" yaml:"kmsKeyId"`
	AWSRegion string `json:"awsRegion" yaml:"awsRegion"`
}

// Validate validates the signer configuration
func (sc *SignerConfig) Validate() error {
	var allErrors field.ErrorList

	if sc.Environment == "" {
		sc.Environment = Environment_Test
	}
	if sc.KeyBackend == "" {
		sc.KeyBackend = KeyBackend_Local
	}

	if _, ok := environmentChains[sc.Environment]; !ok {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("environment"), sc.Environment,
			[]Environment{Environment_Test, Environment_Production}))
	} else if sc.ChainID != 0 && !IsChainAllowed(sc.Environment, sc.ChainID) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), sc.ChainID,
			fmt.Sprintf("chain is not valid for the %s environment", sc.Environment)))
	}

	switch sc.KeyBackend {
	case KeyBackend_Local:
		if sc.PrivateKey == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "privateKey is required for the local key backend"))
		} else if len(strings.TrimPrefix(sc.PrivateKey, "0x")) != 64 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>",
				"private key must be 32 bytes (64 hex chars)"))
		}
	case KeyBackend_AWSKMS:
		if sc.KMSKeyId == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyId"), "kmsKeyId is required for the aws-kms key backend"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("keyBackend"), sc.KeyBackend,
			[]KeyBackend{KeyBackend_Local, KeyBackend_AWSKMS}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

// PersistenceConfig selects where accepted submissions are recorded
type PersistenceConfig struct {
	Type     PersistenceType `json:"type" yaml:"type"`
	DataPath string          `json:"dataPath" yaml:"dataPath"`
	Redis    RedisConfig     `json:"redis" yaml:"redis"`
}

// VerifierConfig configures the server-side submission verifier
type VerifierConfig struct {
	// TrustedAddresses limits accepted signers; empty means no restriction
	TrustedAddresses []string      `json:"trustedAddresses" yaml:"trustedAddresses"`
	FreshnessWindow  time.Duration `json:"freshnessWindow" yaml:"freshnessWindow"`
	MaxFutureSkew    time.Duration `json:"maxFutureSkew" yaml:"maxFutureSkew"`

	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
}

// NewDefaultVerifierConfig returns an unrestricted, in-memory verifier configuration
func NewDefaultVerifierConfig(trusted ...string) *VerifierConfig {
	return &VerifierConfig{
		TrustedAddresses: trusted,
		FreshnessWindow:  DefaultFreshnessWindow,
		MaxFutureSkew:    DefaultMaxFutureSkew,
		Persistence: PersistenceConfig{
			Type: PersistenceType_Memory,
		},
	}
}

// Validate validates the verifier configuration and fills in defaults
func (vc *VerifierConfig) Validate() error {
	var allErrors field.ErrorList

	if vc.FreshnessWindow == 0 {
		vc.FreshnessWindow = DefaultFreshnessWindow
	}
	if vc.MaxFutureSkew == 0 {
		vc.MaxFutureSkew = DefaultMaxFutureSkew
	}
	if vc.FreshnessWindow < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("freshnessWindow"), vc.FreshnessWindow.String(), "must be positive"))
	}
	if vc.MaxFutureSkew < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxFutureSkew"), vc.MaxFutureSkew.String(), "must be positive"))
	}

	for i, addr := range vc.TrustedAddresses {
		if !common.IsHexAddress(addr) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("trustedAddresses").Index(i), addr, "invalid address format"))
		}
	}

	persistencePath := field.NewPath("persistence")
	switch vc.Persistence.Type {
	case "":
		vc.Persistence.Type = PersistenceType_Memory
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if vc.Persistence.DataPath == "" {
			allErrors = append(allErrors, field.Required(persistencePath.Child("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if vc.Persistence.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(persistencePath.Child("redis", "address"), "address is required for redis persistence"))
		}
		if vc.Persistence.Redis.DB < 0 || vc.Persistence.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(persistencePath.Child("redis", "db"), vc.Persistence.Redis.DB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(persistencePath.Child("type"), vc.Persistence.Type,
			[]PersistenceType{PersistenceType_Memory, PersistenceType_Badger, PersistenceType_Redis}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ServerConfig configures the HTTP submission server
type ServerConfig struct {
	Port               int `json:"port" yaml:"port"`
	RateLimitPerMinute int `json:"rateLimitPerMinute" yaml:"rateLimitPerMinute"`
	RateLimitBurst     int `json:"rateLimitBurst" yaml:"rateLimitBurst"`

	// AdminToken is the bearer token for routes that change the trust list
	// or the ledger. Those routes are refused while it is empty.
	AdminToken string `json:"-" yaml:"adminToken"`

	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are honoured when identifying a client
	TrustedProxies []string `json:"trustedProxies" yaml:"trustedProxies"`

	Verifier VerifierConfig `json:"verifier" yaml:"verifier"`

	Debug     bool   `json:"debug" yaml:"debug"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "port must be between 1-65535"))
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = DefaultRateLimitBurst
	}
	if c.RateLimitPerMinute < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimitPerMinute"), c.RateLimitPerMinute, "must be positive"))
	}
	for i, proxy := range c.TrustedProxies {
		if _, err := ParseTrustedProxy(proxy); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("trustedProxies").Index(i), proxy, err.Error()))
		}
	}

	if err := c.Verifier.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("verifier"), "", err.Error()))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// ParseTrustedProxy parses an IP or CIDR. A bare IP is a single host network.
func ParseTrustedProxy(proxy string) (*net.IPNet, error) {
	proxy = strings.TrimSpace(proxy)
	if strings.Contains(proxy, "/") {
		_, network, err := net.ParseCIDR(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR: %w", err)
		}
		return network, nil
	}
	ip := net.ParseIP(proxy)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP address")
	}
	bits := 8 * net.IPv6len
	if v4 := ip.To4(); v4 != nil {
		ip, bits = v4, 8*net.IPv4len
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

// LoadEnvironment loads variables from a .env file. When filename is empty
// the default .env is used and a missing file is not an error.
func LoadEnvironment(filename string) error {
	var err error
	if filename != "" {
		err = godotenv.Overload(filename)
	} else {
		err = godotenv.Load()
		if os.IsNotExist(err) {
			return nil
		}
	}
	return err
}

type trustListFile struct {
	TrustedAddresses []string `yaml:"trusted_addresses"`
}

// LoadTrustedAddressesFile reads a YAML document of the form
//
//	trusted_addresses:
//	  - 0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb7
func LoadTrustedAddressesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trust list %s: %w", path, err)
	}

	var f trustListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse trust list %s: %w", path, err)
	}

	for _, addr := range f.TrustedAddresses {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid address in trust list %s: %s", path, addr)
		}
	}
	return f.TrustedAddresses, nil
}

// SplitAddressList splits a comma separated address list, dropping blanks
func SplitAddressList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
