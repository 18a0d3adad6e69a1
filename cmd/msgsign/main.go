package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/clients/submissionClient"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/rules"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/verifier"
)

func main() {
	if err := config.LoadEnvironment(""); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	keyFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "private-key",
			Usage:   "secp256k1 private key (hex) for the local key backend",
			EnvVars: []string{config.EnvPrivateKey},
		},
		&cli.StringFlag{
			Name:    "key-backend",
			Value:   string(config.KeyBackend_Local),
			Usage:   "Key backend: local or aws-kms",
			EnvVars: []string{config.EnvKeyBackend},
		},
		&cli.StringFlag{
			Name:    "kms-key-id",
			Usage:   "AWS KMS key id or ARN for the aws-kms key backend",
			EnvVars: []string{config.EnvKMSKeyID},
		},
		&cli.StringFlag{
			Name:    "aws-region",
			Usage:   "AWS region override",
			EnvVars: []string{config.EnvAWSRegion},
		},
		&cli.StringFlag{
			Name:    "environment",
			Value:   string(config.Environment_Test),
			Usage:   "Environment: test or production",
			EnvVars: []string{config.EnvEnvironment},
		},
		&cli.UintFlag{
			Name:    "chain-id",
			Usage:   "Chain id the key is used on (must be valid for the environment)",
			EnvVars: []string{config.EnvChainID},
		},
	}
	serverFlag := &cli.StringFlag{
		Name:    "server-url",
		Value:   fmt.Sprintf("http://localhost:%d", config.DefaultPort),
		Usage:   "Verifier server URL",
		EnvVars: []string{config.EnvServerURL},
	}
	contentFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "action",
			Usage:    "Action name, e.g. UPDATE_RULE",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "data",
			Value: "{}",
			Usage: "JSON payload",
		},
		&cli.StringFlag{
			Name:  "nonce",
			Usage: "Nonce (default: 32 random bytes)",
		},
		&cli.Int64Flag{
			Name:  "timestamp",
			Usage: "Timestamp in milliseconds (default: now)",
		},
	}
	ruleFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "name",
			Usage:    "Rule name",
			Required: true,
		},
		&cli.Float64Flag{
			Name:     "daily-limit",
			Usage:    "Transfer limit per period",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "whitelist",
			Usage: "Whitelisted destination address (repeatable)",
		},
		&cli.StringFlag{
			Name:  "rule-type",
			Value: string(rules.RuleType_Daily),
			Usage: "Rule period: daily, weekly or monthly",
		},
		&cli.BoolFlag{
			Name:  "auto-execute",
			Usage: "Execute matching transfers automatically",
		},
		&cli.StringFlag{
			Name:  "notes",
			Usage: "Free form notes",
		},
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Sign as " + rules.ActionSaveTransferRule + " instead of " + rules.ActionUpdateTransferRule,
		},
		&cli.BoolFlag{
			Name:  "submit",
			Usage: "Submit the signed rule to the server",
		},
		serverFlag,
	}

	app := &cli.App{
		Name:  "msgsign",
		Usage: "Sign, verify and submit signed messages",
		Description: `A client for creating EIP-191 and EIP-712 signatures and submitting them
to a msgsign verifier server.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   logger.FormatConsole,
				Usage:   "Log format: json, console or logfmt",
				EnvVars: []string{config.EnvLogFormat},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "address",
				Usage:  "Print the signing address",
				Flags:  keyFlags,
				Action: addressCommand,
			},
			{
				Name:   "sign",
				Usage:  "Sign content as a canonical message and print the result",
				Flags:  append(append([]cli.Flag{}, keyFlags...), contentFlags...),
				Action: signCommand,
			},
			{
				Name:  "sign-typed",
				Usage: "Sign an EIP-712 typed data document",
				Flags: append(append([]cli.Flag{}, keyFlags...),
					&cli.StringFlag{
						Name:     "file",
						Usage:    "JSON file with types, domain and message",
						Required: true,
					},
				),
				Action: signTypedCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify a personal-sign signature",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Usage: "The exact signed message", Required: true},
					&cli.StringFlag{Name: "signature", Usage: "0x prefixed signature", Required: true},
					&cli.StringFlag{Name: "address", Usage: "Expected signer address", Required: true},
				},
				Action: verifyCommand,
			},
			{
				Name:   "submit",
				Usage:  "Sign content and submit it to the server",
				Flags:  append(append([]cli.Flag{serverFlag}, keyFlags...), contentFlags...),
				Action: submitCommand,
			},
			{
				Name:   "rule",
				Usage:  "Sign a transfer rule",
				Flags:  append(append([]cli.Flag{}, keyFlags...), ruleFlags...),
				Action: ruleCommand,
			},
			{
				Name:  "list",
				Usage: "List accepted submissions on the server",
				Flags: []cli.Flag{
					serverFlag,
					&cli.StringFlag{Name: "signer", Usage: "Only list submissions from this address"},
				},
				Action: listCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	return logger.NewLogger(&logger.LoggerConfig{
		Debug:  c.Bool("verbose"),
		Format: c.String("log-format"),
	})
}

func newSigner(c *cli.Context, l *zap.Logger) (*signer.Signer, error) {
	return signer.NewSignerFromConfig(c.Context, &config.SignerConfig{
		Environment: config.Environment(c.String("environment")),
		ChainID:     config.ChainId(c.Uint("chain-id")),
		KeyBackend:  config.KeyBackend(c.String("key-backend")),
		PrivateKey:  c.String("private-key"),
		KMSKeyId:    c.String("kms-key-id"),
		AWSRegion:   c.String("aws-region"),
	}, l)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func contentFromFlags(c *cli.Context) (*types.ContentToSign, error) {
	data := json.RawMessage(c.String("data"))
	if !json.Valid(data) {
		return nil, fmt.Errorf("--data is not valid JSON")
	}
	return &types.ContentToSign{
		Action:    c.String("action"),
		Data:      data,
		Nonce:     c.String("nonce"),
		Timestamp: c.Int64("timestamp"),
	}, nil
}

func addressCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	s, err := newSigner(c, l)
	if err != nil {
		return err
	}
	addr, err := s.GetAddress()
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

func signCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	s, err := newSigner(c, l)
	if err != nil {
		return err
	}
	content, err := contentFromFlags(c)
	if err != nil {
		return err
	}
	signed, err := s.SignContent(c.Context, content)
	if err != nil {
		return err
	}
	return printJSON(signed)
}

func signTypedCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	s, err := newSigner(c, l)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read typed data: %w", err)
	}
	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		return fmt.Errorf("failed to parse typed data: %w", err)
	}

	signature, err := s.SignTypedData(c.Context, td.Domain, td.Types, td.Message)
	if err != nil {
		return err
	}
	addr, err := s.GetAddress()
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"signature": signature,
		"address":   addr,
	})
}

func verifyCommand(c *cli.Context) error {
	if !verifier.VerifySignature(c.String("message"), c.String("signature"), c.String("address")) {
		return cli.Exit("invalid signature", 1)
	}
	fmt.Println("valid")
	return nil
}

func submit(c *cli.Context, l *zap.Logger, signed *types.SignedMessage, data json.RawMessage) error {
	client, err := submissionClient.NewSubmissionClient(c.String("server-url"), l)
	if err != nil {
		return err
	}
	resp, err := client.Submit(c.Context, &types.SubmissionData{
		Data:          data,
		Signature:     signed.Signature,
		SignerAddress: signed.Address,
		SignedMessage: signed.Message,
	})
	if err != nil {
		return err
	}
	if err := printJSON(resp); err != nil {
		return err
	}
	if !resp.Success {
		return cli.Exit("submission rejected", 1)
	}
	return nil
}

func submitCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	s, err := newSigner(c, l)
	if err != nil {
		return err
	}
	content, err := contentFromFlags(c)
	if err != nil {
		return err
	}
	signed, err := s.SignContent(c.Context, content)
	if err != nil {
		return err
	}
	return submit(c, l, signed, content.Data)
}

func ruleCommand(c *cli.Context) error {
	l, err := newLogger(c)
	if err != nil {
		return err
	}
	s, err := newSigner(c, l)
	if err != nil {
		return err
	}

	rule := rules.NewTransferRule(
		c.String("name"),
		c.Float64("daily-limit"),
		rules.RuleType(c.String("rule-type")),
		c.StringSlice("whitelist")...,
	)
	rule.AutoExecute = c.Bool("auto-execute")
	rule.Notes = c.String("notes")
	rule.Timestamp = time.Now().UnixMilli()

	action := rules.ActionUpdateTransferRule
	if c.Bool("save") {
		action = rules.ActionSaveTransferRule
	}
	content, err := rule.Content(action)
	if err != nil {
		return err
	}

	signed, err := s.SignContent(c.Context, content)
	if err != nil {
		return err
	}
	if !c.Bool("submit") {
		return printJSON(signed)
	}
	return submit(c, l, signed, content.Data)
}

func listCommand(c *cli.Context) error {
	client, err := submissionClient.NewSubmissionClient(c.String("server-url"), nil)
	if err != nil {
		return err
	}
	records, err := client.ListSubmissions(c.Context, c.String("signer"))
	if err != nil {
		return err
	}
	return printJSON(records)
}
