package submissions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/signer"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

var fixedNow = time.UnixMilli(1702857600000)

func newTestSigner(t *testing.T) *signer.Signer {
	t.Helper()
	return signer.NewSigner(testutil.NewTestKeySigner(t), testutil.NewTestLogger(t))
}

func signerAddress(t *testing.T, s *signer.Signer) string {
	t.Helper()
	addr, err := s.GetAddress()
	require.NoError(t, err)
	return addr
}

func newTestService(t *testing.T, trusted ...string) *Service {
	t.Helper()
	svc, err := NewService(config.NewDefaultVerifierConfig(trusted...), memory.NewMemoryPersistence(), testutil.NewTestLogger(t),
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return svc
}

// signAt signs data under action with the embedded timestamp set to ts
func signAt(t *testing.T, s *signer.Signer, action string, data any, ts time.Time) *types.SubmissionData {
	t.Helper()
	content, err := types.NewContent(action, data)
	require.NoError(t, err)
	content.Timestamp = ts.UnixMilli()

	signed, err := s.SignContent(context.Background(), content)
	require.NoError(t, err)

	return &types.SubmissionData{
		Data:          content.Data,
		Signature:     signed.Signature,
		SignerAddress: signed.Address,
		SignedMessage: signed.Message,
	}
}

// signRaw signs an arbitrary message string
func signRaw(t *testing.T, s *signer.Signer, msg string) *types.SubmissionData {
	t.Helper()
	signed, err := s.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	return &types.SubmissionData{
		Signature:     signed.Signature,
		SignerAddress: signed.Address,
		SignedMessage: signed.Message,
	}
}

func Test_EndToEndUpdateRule(t *testing.T) {
	s := newTestSigner(t)
	addr := signerAddress(t, s)
	svc := newTestService(t, addr)

	submission := signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
	result := svc.VerifySubmission(submission)

	require.True(t, result.IsValid, result.Error)
	assert.Equal(t, addr, result.SignerAddress)
	assert.Empty(t, result.Error)
	assert.JSONEq(t, `{"dailyLimit":10}`, string(result.Data))
	assert.NotEmpty(t, result.SubmissionId)

	require.NotNil(t, result.Content)
	assert.Equal(t, "UPDATE_RULE", result.Content.Action)
	assert.Len(t, result.Content.Nonce, 66)
	require.NotNil(t, result.Content.Timestamp)
	assert.Equal(t, fixedNow.UnixMilli(), result.Content.Timestamp.UnixMilli())

	records, err := svc.GetSubmissions()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, result.SubmissionId, records[0].Id)
	assert.Equal(t, fixedNow.UnixMilli(), records[0].AcceptedAt)
	assert.Equal(t, fixedNow.UnixMilli(), records[0].Submission.Timestamp)
	assert.Equal(t, submission.SignedMessage, records[0].Submission.SignedMessage)
}

func Test_SignaturesFromSameKeyVerifyIndependently(t *testing.T) {
	s := newTestSigner(t)
	svc, err := NewService(nil, nil, testutil.NewTestLogger(t))
	require.NoError(t, err)

	content, err := types.NewContent("UPDATE_RULE", testutil.FakeRuleData(t))
	require.NoError(t, err)

	first, err := s.SignContent(context.Background(), content)
	require.NoError(t, err)
	second, err := s.SignContent(context.Background(), content)
	require.NoError(t, err)
	require.NotEqual(t, first.Message, second.Message)

	for _, signed := range []*types.SignedMessage{first, second} {
		result := svc.VerifySubmission(&types.SubmissionData{
			Signature:     signed.Signature,
			SignerAddress: signed.Address,
			SignedMessage: signed.Message,
		})
		assert.True(t, result.IsValid, result.Error)
	}
}

func Test_TamperExposure(t *testing.T) {
	s := newTestSigner(t)
	svc := newTestService(t)

	submission := signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
	submission.Data = json.RawMessage(`{"dailyLimit":1000000}`)

	result := svc.VerifySubmission(submission)
	require.True(t, result.IsValid, result.Error)
	assert.JSONEq(t, `{"dailyLimit":10}`, string(result.Data))
	assert.False(t, MatchesSubmittedData(result, submission.Data))
	assert.True(t, MatchesSubmittedData(result, json.RawMessage(`{ "dailyLimit" : 10 }`)))
}

func Test_CaseVariantKeysAreIgnored(t *testing.T) {
	s := newTestSigner(t)
	svc := newTestService(t)

	stale := fixedNow.Add(-16 * time.Minute).UnixMilli()
	msg := fmt.Sprintf(`{"action":"UPDATE_RULE","data":{"dailyLimit":10},"DATA":{"dailyLimit":999999},`+
		`"nonce":"n","timestamp":%d,"TimeStamp":%d}`, stale, fixedNow.UnixMilli())

	result := svc.VerifySubmission(signRaw(t, s, msg))
	assert.False(t, result.IsValid)
	assert.Equal(t, ReasonExpired, result.Error)

	msg = fmt.Sprintf(`{"action":"UPDATE_RULE","data":{"dailyLimit":10},"DATA":{"dailyLimit":999999},`+
		`"nonce":"n","timestamp":%d}`, fixedNow.UnixMilli())
	result = svc.VerifySubmission(signRaw(t, s, msg))
	require.True(t, result.IsValid, result.Error)
	assert.JSONEq(t, `{"dailyLimit":10}`, string(result.Data))
}

func Test_MatchesSubmittedData(t *testing.T) {
	valid := &types.VerificationResult{IsValid: true, Data: json.RawMessage(`{"a":1,"b":{"c":[1,2]}}`)}

	tests := []struct {
		name      string
		result    *types.VerificationResult
		submitted string
		want      bool
	}{
		{"same bytes", valid, `{"a":1,"b":{"c":[1,2]}}`, true},
		{"different key order", valid, `{"b":{"c":[1,2]},"a":1}`, true},
		{"different value", valid, `{"a":2,"b":{"c":[1,2]}}`, false},
		{"different array order", valid, `{"a":1,"b":{"c":[2,1]}}`, false},
		{"extra key", valid, `{"a":1,"b":{"c":[1,2]},"d":true}`, false},
		{"invalid json", valid, `{"a":`, false},
		{"nil result", nil, `{}`, false},
		{"failed result", &types.VerificationResult{IsValid: false, Data: json.RawMessage(`{}`)}, `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesSubmittedData(tt.result, json.RawMessage(tt.submitted)))
		})
	}
}

func Test_FreshnessBoundary(t *testing.T) {
	s := newTestSigner(t)

	tests := []struct {
		name    string
		ts      time.Time
		valid   bool
		message string
	}{
		{"4m59s old", fixedNow.Add(-4*time.Minute - 59*time.Second), true, ""},
		{"exactly 5m old", fixedNow.Add(-5 * time.Minute), true, ""},
		{"5m and 1ms old", fixedNow.Add(-5*time.Minute - time.Millisecond), false, "expired"},
		{"5m01s old", fixedNow.Add(-5*time.Minute - time.Second), false, "expired"},
		{"1h old", fixedNow.Add(-time.Hour), false, "expired"},
		{"4m ahead", fixedNow.Add(4 * time.Minute), true, ""},
		{"5m01s ahead", fixedNow.Add(5*time.Minute + time.Second), false, "future"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			result := svc.VerifySubmission(signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, tt.ts))
			assert.Equal(t, tt.valid, result.IsValid, result.Error)
			if tt.valid {
				return
			}
			assert.Contains(t, result.Error, tt.message)
			assert.Nil(t, result.Data)

			records, err := svc.GetSubmissions()
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func Test_TimestampForms(t *testing.T) {
	s := newTestSigner(t)
	nonce := "0x" + fmt.Sprintf("%064x", 1)

	tests := []struct {
		name      string
		timestamp string
		valid     bool
		reason    string
	}{
		{"numeric ms", fmt.Sprintf("%d", fixedNow.UnixMilli()), true, ""},
		{"numeric string ms", fmt.Sprintf(`"%d"`, fixedNow.UnixMilli()), true, ""},
		{"rfc3339 string", `"2023-12-18T00:00:00Z"`, true, ""},
		{"stale rfc3339 string", `"2023-12-17T00:00:00Z"`, false, ReasonExpired},
		{"null", `null`, true, ""},
		{"zero", `0`, true, ""},
		{"empty string", `""`, true, ""},
		{"false", `false`, true, ""},
		{"true", `true`, false, ReasonInvalidTimestamp},
		{"garbage string", `"not a date"`, false, ReasonInvalidTimestamp},
		{"object", `{"ms":1}`, false, ReasonInvalidTimestamp},
		{"array", `[1702857600000]`, false, ReasonInvalidTimestamp},
		{"far future", `9e15`, false, ReasonInvalidTimestamp},
		{"year 2100", `4102444800000`, false, ReasonFuture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			msg := fmt.Sprintf(`{"action":"UPDATE_RULE","data":{"dailyLimit":10},"nonce":"%s","timestamp":%s}`, nonce, tt.timestamp)
			result := svc.VerifySubmission(signRaw(t, s, msg))
			assert.Equal(t, tt.valid, result.IsValid, result.Error)
			if !tt.valid {
				assert.Equal(t, tt.reason, result.Error)
			}
		})
	}

	t.Run("absent timestamp", func(t *testing.T) {
		svc := newTestService(t)
		result := svc.VerifySubmission(signRaw(t, s, `{"action":"PING","data":{}}`))
		require.True(t, result.IsValid, result.Error)
		require.NotNil(t, result.Content)
		assert.Nil(t, result.Content.Timestamp)
	})
}

func Test_InvalidSignature(t *testing.T) {
	s := newTestSigner(t)
	other := newTestSigner(t)
	svc := newTestService(t)

	t.Run("signer mismatch", func(t *testing.T) {
		submission := signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
		submission.SignerAddress = signerAddress(t, other)

		result := svc.VerifySubmission(submission)
		assert.False(t, result.IsValid)
		assert.Equal(t, ReasonInvalidSignature, result.Error)
	})

	t.Run("modified message", func(t *testing.T) {
		submission := signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
		submission.SignedMessage = submission.SignedMessage[:len(submission.SignedMessage)-1] + "1}"

		result := svc.VerifySubmission(submission)
		assert.False(t, result.IsValid)
		assert.Equal(t, ReasonInvalidSignature, result.Error)
	})

	t.Run("malformed inputs", func(t *testing.T) {
		submission := signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
		for _, mutate := range []func(d *types.SubmissionData){
			func(d *types.SubmissionData) { d.Signature = "" },
			func(d *types.SubmissionData) { d.Signature = "0x1234" },
			func(d *types.SubmissionData) { d.Signature = "not hex at all" },
			func(d *types.SubmissionData) { d.SignerAddress = "" },
			func(d *types.SubmissionData) { d.SignerAddress = "0x123" },
		} {
			d := *submission
			mutate(&d)
			assert.NotPanics(t, func() {
				result := svc.VerifySubmission(&d)
				assert.False(t, result.IsValid)
				assert.Equal(t, ReasonInvalidSignature, result.Error)
			})
		}
	})

	t.Run("nil submission", func(t *testing.T) {
		result := svc.VerifySubmission(nil)
		assert.False(t, result.IsValid)
	})

	records, err := svc.GetSubmissions()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_InvalidMessageFormat(t *testing.T) {
	s := newTestSigner(t)
	svc := newTestService(t)

	for _, msg := range []string{"hello world", `["UPDATE_RULE"]`, `{"action":`, `42`} {
		result := svc.VerifySubmission(signRaw(t, s, msg))
		assert.False(t, result.IsValid, msg)
		assert.Equal(t, ReasonInvalidFormat, result.Error, msg)
	}
}

func Test_TrustEnforcement(t *testing.T) {
	a := newTestSigner(t)
	b := newTestSigner(t)
	addrA := signerAddress(t, a)
	addrB := signerAddress(t, b)

	svc := newTestService(t, addrA)

	fromB := signAt(t, b, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
	result := svc.VerifySubmission(fromB)
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Error, "not in trusted addresses")
	assert.Equal(t, addrB, result.SignerAddress)

	fromA := signAt(t, a, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
	result = svc.VerifySubmission(fromA)
	assert.True(t, result.IsValid, result.Error)

	// the trust check runs before the message is parsed or its age checked
	stale := signAt(t, b, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow.Add(-time.Hour))
	result = svc.VerifySubmission(stale)
	assert.Contains(t, result.Error, "not in trusted addresses")
}

func Test_TrustIsCaseInsensitive(t *testing.T) {
	s := newTestSigner(t)
	addr := signerAddress(t, s)
	svc := newTestService(t)

	require.NoError(t, svc.AddTrustedAddress("0x"+strings.ToUpper(addr[2:])))
	assert.True(t, svc.IsTrusted(addr))

	submission := signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow)
	result := svc.VerifySubmission(submission)
	assert.True(t, result.IsValid, result.Error)
}

func Test_TrustMutationIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	x := testutil.CowAddress
	y := "0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF"

	assert.True(t, svc.IsTrusted(y), "empty trust list accepts everyone")

	require.NoError(t, svc.AddTrustedAddress(x))
	once := svc.TrustedAddresses()
	require.NoError(t, svc.AddTrustedAddress(x))
	assert.Equal(t, once, svc.TrustedAddresses())
	assert.Equal(t, []string{"0xcd2a3d9f938e13cd947ec05abc7fe734df8dd826"}, once)
	assert.False(t, svc.IsTrusted(y))

	svc.RemoveTrustedAddress(y)
	assert.Equal(t, once, svc.TrustedAddresses())

	svc.RemoveTrustedAddress("0xcd2a3d9f938e13cd947ec05abc7fe734df8dd826")
	assert.Empty(t, svc.TrustedAddresses())
	assert.True(t, svc.IsTrusted(y))

	assert.Error(t, svc.AddTrustedAddress("not-an-address"))
	assert.Empty(t, svc.TrustedAddresses())
}

func Test_LedgerQueries(t *testing.T) {
	a := newTestSigner(t)
	b := newTestSigner(t)
	addrA := signerAddress(t, a)
	addrB := signerAddress(t, b)
	svc := newTestService(t)

	for i := 0; i < 3; i++ {
		require.True(t, svc.VerifySubmission(signAt(t, a, "UPDATE_RULE", map[string]any{"i": i}, fixedNow)).IsValid)
	}
	require.True(t, svc.VerifySubmission(signAt(t, b, "UPDATE_RULE", map[string]any{"i": 99}, fixedNow)).IsValid)

	fromA, err := svc.GetSubmissionsFrom(addrA)
	require.NoError(t, err)
	fromB, err := svc.GetSubmissionsFrom(addrB)
	require.NoError(t, err)
	assert.Len(t, fromA, 3)
	assert.Len(t, fromB, 1)
	for _, ra := range fromA {
		for _, rb := range fromB {
			assert.NotEqual(t, ra.Id, rb.Id)
		}
	}

	has, err := svc.HasSubmissionFrom(addrB)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = svc.HasSubmissionFrom(testutil.CowAddress)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, svc.ClearSubmissions())
	all, err := svc.GetSubmissions()
	require.NoError(t, err)
	assert.Empty(t, all)
	has, err = svc.HasSubmissionFrom(addrA)
	require.NoError(t, err)
	assert.False(t, has)
}

func Test_ConcurrentSubmissionsAreAllRecorded(t *testing.T) {
	s := newTestSigner(t)
	svc := newTestService(t)

	const n = 20
	submissions := make([]*types.SubmissionData, n)
	for i := 0; i < n; i++ {
		submissions[i] = signAt(t, s, "UPDATE_RULE", map[string]any{"i": i}, fixedNow)
	}

	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := svc.VerifySubmission(submissions[i])
			if result.IsValid {
				ids[i] = result.SubmissionId
			}
		}(i)
	}
	wg.Wait()

	records, err := svc.GetSubmissions()
	require.NoError(t, err)
	assert.Len(t, records, n)

	seen := make(map[string]bool)
	for _, id := range ids {
		require.NotEmpty(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	// the gauge tracks the final ledger size regardless of completion order
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Regexp(t, regexp.MustCompile(fmt.Sprintf(`(?m)^msgsign_ledger_size %d$`, n)), rec.Body.String())
}

func Test_StorageFailure(t *testing.T) {
	s := newTestSigner(t)
	ledger := memory.NewMemoryPersistence()
	svc, err := NewService(nil, ledger, testutil.NewTestLogger(t), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	result := svc.VerifySubmission(signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow))
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Error, "Failed to record submission")
}

func Test_VerifyTypedDataSubmission(t *testing.T) {
	cow := signer.NewSigner(testutil.NewCowKeySigner(t), testutil.NewTestLogger(t))
	domain, typeDefs, value := testutil.MailTypedData()

	signature, err := cow.SignTypedData(context.Background(), domain, typeDefs, value)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		svc := newTestService(t, testutil.CowAddress)
		result := svc.VerifyTypedDataSubmission(&types.TypedDataSubmission{
			Domain: domain, Types: typeDefs, Value: value,
			Signature: signature, ExpectedAddress: testutil.CowAddress,
		})
		require.True(t, result.IsValid, result.Error)
		assert.Equal(t, testutil.CowAddress, result.SignerAddress)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(result.Data, &decoded))
		assert.Equal(t, "Hello, Bob!", decoded["contents"])

		records, err := svc.GetSubmissions()
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("untrusted", func(t *testing.T) {
		svc := newTestService(t, "0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF")
		result := svc.VerifyTypedDataSubmission(&types.TypedDataSubmission{
			Domain: domain, Types: typeDefs, Value: value,
			Signature: signature, ExpectedAddress: testutil.CowAddress,
		})
		assert.False(t, result.IsValid)
		assert.Contains(t, result.Error, "not in trusted addresses")
	})

	t.Run("wrong expected address", func(t *testing.T) {
		svc := newTestService(t)
		result := svc.VerifyTypedDataSubmission(&types.TypedDataSubmission{
			Domain: domain, Types: typeDefs, Value: value,
			Signature: signature, ExpectedAddress: "0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF",
		})
		assert.False(t, result.IsValid)
		assert.Equal(t, ReasonInvalidSignature, result.Error)
	})

	t.Run("nil", func(t *testing.T) {
		svc := newTestService(t)
		assert.False(t, svc.VerifyTypedDataSubmission(nil).IsValid)
	})
}

func Test_HandleApiSubmission(t *testing.T) {
	s := newTestSigner(t)
	addr := signerAddress(t, s)

	t.Run("accepted", func(t *testing.T) {
		svc := newTestService(t, addr)
		body, err := json.Marshal(signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow))
		require.NoError(t, err)

		resp := svc.HandleApiSubmission(context.Background(), body)
		require.True(t, resp.Success, resp.Message)
		assert.Equal(t, MessageAccepted, resp.Message)
		require.NotNil(t, resp.Data)
		assert.Regexp(t, `^SUB-\d+-[0-9a-f]{9}$`, resp.Data.SubmissionId)
		assert.Equal(t, addr, resp.Data.SignerAddress)
		assert.Equal(t, fixedNow.UnixMilli(), resp.Data.Timestamp)

		records, err := svc.GetSubmissions()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, resp.Data.SubmissionId, records[0].Id)
		assert.JSONEq(t, `{"dailyLimit":10}`, string(records[0].Submission.Data))
	})

	t.Run("rejected", func(t *testing.T) {
		svc := newTestService(t, testutil.CowAddress)
		body, err := json.Marshal(signAt(t, s, "UPDATE_RULE", map[string]any{"dailyLimit": 10}, fixedNow))
		require.NoError(t, err)

		resp := svc.HandleApiSubmission(context.Background(), body)
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "not in trusted addresses")
		assert.Nil(t, resp.Data)
	})

	t.Run("malformed body", func(t *testing.T) {
		svc := newTestService(t)
		resp := svc.HandleApiSubmission(context.Background(), []byte(`{"signature":`))
		assert.False(t, resp.Success)
		assert.Equal(t, ReasonInvalidRequest, resp.Message)
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc := newTestService(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		resp := svc.HandleApiSubmission(ctx, []byte(`{}`))
		assert.False(t, resp.Success)
	})
}

func Test_LedgerRootAndProof(t *testing.T) {
	s := newTestSigner(t)
	svc := newTestService(t)

	root, count, err := svc.LedgerRoot()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, common.Hash{}, root)

	_, _, err = svc.LedgerProof(0)
	assert.Error(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, svc.VerifySubmission(signAt(t, s, "UPDATE_RULE", map[string]any{"i": i}, fixedNow)).IsValid)
	}

	root, count, err = svc.LedgerRoot()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NotEqual(t, common.Hash{}, root)

	records, err := svc.GetSubmissions()
	require.NoError(t, err)
	for i := range records {
		proof, proofRoot, err := svc.LedgerProof(i)
		require.NoError(t, err)
		assert.Equal(t, root, proofRoot)
		assert.Equal(t, merkle.HashSubmissionRecord(records[i]), proof.Leaf)
		assert.True(t, merkle.VerifyProof(proof, [32]byte(root)))
	}

	_, _, err = svc.LedgerProof(3)
	assert.Error(t, err)

	require.True(t, svc.VerifySubmission(signAt(t, s, "UPDATE_RULE", map[string]any{"i": 3}, fixedNow)).IsValid)
	grown, _, err := svc.LedgerRoot()
	require.NoError(t, err)
	assert.NotEqual(t, root, grown)
}

func Test_NewSubmissionId(t *testing.T) {
	pattern := regexp.MustCompile(`^SUB-1702857600000-[0-9a-f]{9}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSubmissionId(fixedNow)
		require.True(t, pattern.MatchString(id), id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

func Test_NewService(t *testing.T) {
	t.Run("invalid trusted address", func(t *testing.T) {
		_, err := NewService(config.NewDefaultVerifierConfig("0x1234"), nil, nil)
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		svc, err := NewService(nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, svc.TrustedAddresses())
		assert.NoError(t, svc.HealthCheck())
		assert.NoError(t, svc.Close())
	})

	t.Run("trusted addresses from config", func(t *testing.T) {
		svc, err := NewService(config.NewDefaultVerifierConfig(testutil.CowAddress, testutil.CowAddress), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"0xcd2a3d9f938e13cd947ec05abc7fe734df8dd826"}, svc.TrustedAddresses())
	})
}
