// Package rules defines the transfer rule payloads carried in signed messages.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

// Actions that carry a TransferRule
const (
	ActionUpdateTransferRule = "UPDATE_TRANSFER_RULE"
	ActionSaveTransferRule   = "SAVE_TRANSFER_RULE"
)

type RuleType string

const (
	RuleType_Daily   RuleType = "daily"
	RuleType_Weekly  RuleType = "weekly"
	RuleType_Monthly RuleType = "monthly"
)

// CurrentVersion is written by NewTransferRule
const CurrentVersion = "1.0.0"

// TransferRule limits outgoing transfers. Field order is the order the
// fields appear in a signed message.
type TransferRule struct {
	RuleName    string   `json:"ruleName"`
	DailyLimit  float64  `json:"dailyLimit"`
	Whitelist   []string `json:"whitelist"`
	RuleType    RuleType `json:"ruleType"`
	AutoExecute bool     `json:"autoExecute"`
	Notes       string   `json:"notes,omitempty"`
	Timestamp   int64    `json:"timestamp,omitempty"`
	Version     string   `json:"version,omitempty"`
}

// NewTransferRule returns a rule with the current version set
func NewTransferRule(name string, dailyLimit float64, ruleType RuleType, whitelist ...string) *TransferRule {
	if whitelist == nil {
		whitelist = []string{}
	}
	return &TransferRule{
		RuleName:   name,
		DailyLimit: dailyLimit,
		Whitelist:  whitelist,
		RuleType:   ruleType,
		Version:    CurrentVersion,
	}
}

// IsRuleAction reports whether action carries a TransferRule
func IsRuleAction(action string) bool {
	return action == ActionUpdateTransferRule || action == ActionSaveTransferRule
}

// Validate validates the rule
func (r *TransferRule) Validate() error {
	var allErrors field.ErrorList

	if strings.TrimSpace(r.RuleName) == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("ruleName"), "ruleName is required"))
	}
	if r.DailyLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("dailyLimit"), r.DailyLimit, "must not be negative"))
	}

	switch r.RuleType {
	case RuleType_Daily, RuleType_Weekly, RuleType_Monthly:
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("ruleType"), r.RuleType,
			[]RuleType{RuleType_Daily, RuleType_Weekly, RuleType_Monthly}))
	}

	seen := make(map[common.Address]bool, len(r.Whitelist))
	for i, addr := range r.Whitelist {
		path := field.NewPath("whitelist").Index(i)
		if !common.IsHexAddress(addr) {
			allErrors = append(allErrors, field.Invalid(path, addr, "invalid address format"))
			continue
		}
		a := common.HexToAddress(addr)
		if seen[a] {
			allErrors = append(allErrors, field.Duplicate(path, addr))
		}
		seen[a] = true
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// Content wraps the rule in a ContentToSign under action
func (r *TransferRule) Content(action string) (*types.ContentToSign, error) {
	if !IsRuleAction(action) {
		return nil, fmt.Errorf("action %q does not carry a transfer rule", action)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer rule: %w", err)
	}
	return types.NewContent(action, r)
}

// DecodeTransferRule strictly decodes and validates a rule payload
func DecodeTransferRule(raw json.RawMessage) (*TransferRule, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("transfer rule payload is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var rule TransferRule
	if err := dec.Decode(&rule); err != nil {
		return nil, fmt.Errorf("failed to decode transfer rule: %w", err)
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer rule: %w", err)
	}
	return &rule, nil
}

// FromVerificationResult extracts the rule from a successful verification.
// The rule is read from the signed message, not from the submitted data.
func FromVerificationResult(result *types.VerificationResult) (*TransferRule, error) {
	if result == nil || !result.IsValid {
		return nil, fmt.Errorf("verification did not succeed")
	}
	if result.Content != nil && !IsRuleAction(result.Content.Action) {
		return nil, fmt.Errorf("action %q does not carry a transfer rule", result.Content.Action)
	}
	return DecodeTransferRule(result.Data)
}
