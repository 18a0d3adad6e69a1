package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/Layr-Labs/eigenx-msgsign-go/internal/keySigner/localKeySigner"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/logger"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// Keys from the EIP-712 reference example; keccak256("cow") and keccak256("bob")
const (
	CowPrivateKey = "c85ef7d79691fe79573b1a7064c19c1a9819ebdbd1faaab1a8ec92344438aaf4"
	CowAddress    = "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"

	// MailTypedDataHash is the signing digest of MailTypedData
	MailTypedDataHash = "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2"
)

// NewTestLogger returns a debug logger for tests
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return l
}

// NewTestKeySigner returns a local key signer around a fresh key
func NewTestKeySigner(t *testing.T) *localKeySigner.LocalKeySigner {
	t.Helper()
	s, err := localKeySigner.GenerateLocalKeySigner(NewTestLogger(t))
	if err != nil {
		t.Fatalf("Failed to create key signer: %v", err)
	}
	return s
}

// NewCowKeySigner returns the signer for CowAddress
func NewCowKeySigner(t *testing.T) *localKeySigner.LocalKeySigner {
	t.Helper()
	s, err := localKeySigner.NewLocalKeySignerFromHex(CowPrivateKey, NewTestLogger(t))
	if err != nil {
		t.Fatalf("Failed to load key signer: %v", err)
	}
	return s
}

// MailTypedData returns the EIP-712 "Ether Mail" example without its
// EIP712Domain type.
func MailTypedData() (apitypes.TypedDataDomain, apitypes.Types, apitypes.TypedDataMessage) {
	domain := apitypes.TypedDataDomain{
		Name:              "Ether Mail",
		Version:           "1",
		ChainId:           math.NewHexOrDecimal256(1),
		VerifyingContract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC",
	}
	types := apitypes.Types{
		"Person": {
			{Name: "name", Type: "string"},
			{Name: "wallet", Type: "address"},
		},
		"Mail": {
			{Name: "from", Type: "Person"},
			{Name: "to", Type: "Person"},
			{Name: "contents", Type: "string"},
		},
	}
	value := apitypes.TypedDataMessage{
		"from": map[string]interface{}{
			"name":   "Cow",
			"wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
		},
		"to": map[string]interface{}{
			"name":   "Bob",
			"wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
		},
		"contents": "Hello, Bob!",
	}
	return domain, types, value
}

// FakeRuleData returns a random transfer rule payload with a stable key order
func FakeRuleData(t *testing.T) json.RawMessage {
	t.Helper()
	payload := struct {
		RuleName   string   `json:"ruleName"`
		DailyLimit int      `json:"dailyLimit"`
		Whitelist  []string `json:"whitelist"`
		RuleType   string   `json:"ruleType"`
		Notes      string   `json:"notes"`
	}{
		RuleName:   strings.ToLower(gofakeit.LastName()) + "-limit",
		DailyLimit: gofakeit.Number(1, 1000),
		Whitelist:  []string{fmt.Sprintf("0x%040x", gofakeit.Number(1, 1<<30))},
		RuleType:   gofakeit.RandomString([]string{"daily", "weekly", "monthly"}),
		Notes:      gofakeit.Sentence(10),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal fake rule: %v", err)
	}
	return raw
}
