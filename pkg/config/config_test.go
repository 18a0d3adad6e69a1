package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb7"

func Test_IsChainAllowed(t *testing.T) {
	assert.True(t, IsChainAllowed(Environment_Test, ChainId_EthereumSepolia))
	assert.True(t, IsChainAllowed(Environment_Test, ChainId_EthereumAnvil))
	assert.False(t, IsChainAllowed(Environment_Test, ChainId_EthereumMainnet))
	assert.True(t, IsChainAllowed(Environment_Production, ChainId_ArbitrumOne))
	assert.False(t, IsChainAllowed(Environment("staging"), ChainId_ArbitrumOne))
}

func Test_GetChainName(t *testing.T) {
	assert.Equal(t, ChainName_EthereumSepolia, GetChainName(ChainId_EthereumSepolia))
	assert.Equal(t, ChainName("chain-99"), GetChainName(ChainId(99)))
}

func Test_SignerConfig_Validate(t *testing.T) {
	t.Run("defaults to local test signer", func(t *testing.T) {
		sc := &SignerConfig{PrivateKey: "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"}
		require.NoError(t, sc.Validate())
		assert.Equal(t, Environment_Test, sc.Environment)
		assert.Equal(t, KeyBackend_Local, sc.KeyBackend)
	})

	t.Run("local backend requires key", func(t *testing.T) {
		sc := &SignerConfig{}
		err := sc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "privateKey")
	})

	t.Run("rejects short key", func(t *testing.T) {
		sc := &SignerConfig{PrivateKey: "0x1234"}
		err := sc.Validate()
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "0x1234")
	})

	t.Run("kms backend requires key id", func(t *testing.T) {
		sc := &SignerConfig{KeyBackend: KeyBackend_AWSKMS}
		err := sc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kmsKeyId")

		sc.KMSKeyId = "alias/msgsign"
		assert.NoError(t, sc.Validate())
	})

	t.Run("chain must match environment", func(t *testing.T) {
		sc := &SignerConfig{KeyBackend: KeyBackend_AWSKMS, KMSKeyId: "k", ChainID: ChainId_EthereumMainnet}
		err := sc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chainId")

		sc.Environment = Environment_Production
		assert.NoError(t, sc.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		sc := &SignerConfig{KeyBackend: "hsm"}
		assert.Error(t, sc.Validate())
	})
}

func Test_VerifierConfig_Validate(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		vc := &VerifierConfig{}
		require.NoError(t, vc.Validate())
		assert.Equal(t, DefaultFreshnessWindow, vc.FreshnessWindow)
		assert.Equal(t, DefaultMaxFutureSkew, vc.MaxFutureSkew)
		assert.Equal(t, PersistenceType_Memory, vc.Persistence.Type)
	})

	t.Run("default config is valid", func(t *testing.T) {
		vc := NewDefaultVerifierConfig(testAddress)
		assert.NoError(t, vc.Validate())
		assert.Equal(t, []string{testAddress}, vc.TrustedAddresses)
	})

	t.Run("rejects bad trusted address", func(t *testing.T) {
		vc := NewDefaultVerifierConfig(testAddress, "not-an-address")
		err := vc.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "trustedAddresses[1]")
	})

	t.Run("rejects negative window", func(t *testing.T) {
		vc := &VerifierConfig{FreshnessWindow: -time.Second}
		assert.Error(t, vc.Validate())
	})

	t.Run("badger requires data path", func(t *testing.T) {
		vc := &VerifierConfig{Persistence: PersistenceConfig{Type: PersistenceType_Badger}}
		assert.Error(t, vc.Validate())

		vc.Persistence.DataPath = t.TempDir()
		assert.NoError(t, vc.Validate())
	})

	t.Run("redis requires address and db range", func(t *testing.T) {
		vc := &VerifierConfig{Persistence: PersistenceConfig{Type: PersistenceType_Redis}}
		assert.Error(t, vc.Validate())

		vc.Persistence.Redis.Address = "localhost:6379"
		vc.Persistence.Redis.DB = 16
		assert.Error(t, vc.Validate())

		vc.Persistence.Redis.DB = 15
		assert.NoError(t, vc.Validate())
	})

	t.Run("unknown persistence type", func(t *testing.T) {
		vc := &VerifierConfig{Persistence: PersistenceConfig{Type: "postgres"}}
		assert.Error(t, vc.Validate())
	})
}

func Test_ServerConfig_Validate(t *testing.T) {
	c := &ServerConfig{Port: DefaultPort}
	require.NoError(t, c.Validate())
	assert.Equal(t, DefaultRateLimitPerMinute, c.RateLimitPerMinute)
	assert.Equal(t, DefaultRateLimitBurst, c.RateLimitBurst)

	c = &ServerConfig{Port: 0}
	assert.Error(t, c.Validate())

	c = &ServerConfig{Port: DefaultPort, Verifier: VerifierConfig{TrustedAddresses: []string{"bogus"}}}
	assert.Error(t, c.Validate())

	c = &ServerConfig{Port: DefaultPort, TrustedProxies: []string{"10.0.0.0/8", "192.0.2.1", "::1"}}
	assert.NoError(t, c.Validate())

	c = &ServerConfig{Port: DefaultPort, TrustedProxies: []string{"10.0.0.0/33"}}
	assert.Error(t, c.Validate())

	c = &ServerConfig{Port: DefaultPort, TrustedProxies: []string{"proxy.local"}}
	assert.Error(t, c.Validate())
}

func Test_ParseTrustedProxy(t *testing.T) {
	tests := []struct {
		proxy    string
		inside   string
		outside  string
		expected bool
	}{
		{"10.0.0.0/8", "10.1.2.3", "11.0.0.1", true},
		{"192.0.2.1", "192.0.2.1", "192.0.2.2", true},
		{" 192.0.2.1 ", "192.0.2.1", "192.0.2.2", true},
		{"2001:db8::/32", "2001:db8::1", "2001:db9::1", true},
		{"::1", "::1", "::2", true},
		{"nope", "", "", false},
		{"10.0.0.0/99", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.proxy, func(t *testing.T) {
			network, err := ParseTrustedProxy(tt.proxy)
			if !tt.expected {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, network.Contains(net.ParseIP(tt.inside)))
			assert.False(t, network.Contains(net.ParseIP(tt.outside)))
		})
	}
}

func Test_LoadTrustedAddressesFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "trusted.yaml")
		require.NoError(t, os.WriteFile(path, []byte("trusted_addresses:\n  - "+testAddress+"\n"), 0o600))

		addrs, err := LoadTrustedAddressesFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{testAddress}, addrs)
	})

	t.Run("invalid address", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("trusted_addresses:\n  - nope\n"), 0o600))

		_, err := LoadTrustedAddressesFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTrustedAddressesFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func Test_LoadEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MSGSIGN_TEST_VALUE=hello\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MSGSIGN_TEST_VALUE") })

	require.NoError(t, LoadEnvironment(path))
	assert.Equal(t, "hello", os.Getenv("MSGSIGN_TEST_VALUE"))

	assert.Error(t, LoadEnvironment(filepath.Join(t.TempDir(), "missing.env")))
}

func Test_SplitAddressList(t *testing.T) {
	assert.Equal(t, []string{"0xa", "0xb"}, SplitAddressList(" 0xa, ,0xb ,"))
	assert.Nil(t, SplitAddressList(""))
}
