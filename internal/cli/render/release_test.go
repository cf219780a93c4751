package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trebuchet-org/treb-release/internal/domain"
	"github.com/trebuchet-org/treb-release/internal/domain/config"
	"github.com/trebuchet-org/treb-release/internal/domain/models"
	"github.com/trebuchet-org/treb-release/internal/usecase"
)

func init() {
	color.NoColor = true
}

var (
	proxyAddr = common.HexToAddress("0x0000000000000000000000000000000000000ccc")
	implAddr  = common.HexToAddress("0x0000000000000000000000000000000000000bbb")
)

func upgradableResult() *usecase.ReleaseResult {
	return &usecase.ReleaseResult{
		RunID:        "run-1",
		Network:      &config.Network{Name: "bsc", ChainID: 56, BrowserURL: "https://bscscan.com"},
		ContractType: "tribe",
		Record: models.DeploymentRecord{
			Tag:        "tribe-prod",
			Address:    proxyAddr,
			Version:    "abc123def4567890",
			Date:       time.Date(2021, 7, 1, 10, 0, 0, 0, time.UTC),
			Args:       models.Args{},
			Deployment: models.Upgradable(implAddr),
		},
		Transaction:          &models.TxHandle{Hash: common.HexToHash("0x01"), BlockNumber: 101},
		ImplementationReused: true,
		DuplicateTags:        1,
		Confirmations:        5,
		Confirmed:            true,
		Verification: usecase.VerificationOutcome{
			Attempted: true,
			Address:   implAddr,
			Warning:   &usecase.Warning{Stage: usecase.StageVerify, Message: "failed to verify contract"},
		},
		Warnings: []usecase.Warning{
			{Stage: usecase.StageTagCheck, Message: "There are 1 deployments with the same tag of tribe-prod"},
			{Stage: usecase.StageVerify, Message: "failed to verify contract", Err: errors.New("timeout")},
		},
	}
}

func TestReleaseRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewReleaseRenderer(&buf).RenderRelease(upgradableResult()))
	out := buf.String()

	assert.Contains(t, out, "Released tribe on bsc (56)")
	assert.Contains(t, out, proxyAddr.Hex())
	assert.Contains(t, out, implAddr.Hex()+" (reused)")
	assert.Contains(t, out, "upgradable")
	assert.Contains(t, out, "tribe-prod")
	assert.Contains(t, out, "(block 101)")
	assert.Contains(t, out, "5 ✓")
	assert.Contains(t, out, "https://bscscan.com/address/"+proxyAddr.Hex())
	assert.Contains(t, out, "[Tag Check] There are 1 deployments with the same tag of tribe-prod")
	assert.Contains(t, out, "[Verify] failed to verify contract (timeout)")
}

func TestReleaseRenderer_SimpleUntagged(t *testing.T) {
	result := upgradableResult()
	result.Record.Tag = ""
	result.Record.Deployment = models.Simple()
	result.Confirmed = false
	result.Verification = usecase.VerificationOutcome{SkipReason: "local chain"}
	result.Warnings = nil
	result.Network.BrowserURL = ""

	var buf bytes.Buffer
	require.NoError(t, NewReleaseRenderer(&buf).RenderRelease(result))
	out := buf.String()

	assert.Contains(t, out, "simple")
	assert.Contains(t, out, "untagged")
	assert.Contains(t, out, "not confirmed")
	assert.Contains(t, out, "skipped (local chain)")
	assert.NotContains(t, out, "Implementation:")
	assert.NotContains(t, out, "Explorer:")
	assert.NotContains(t, out, "Warnings:")
}

func TestReleaseJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, ReleaseJSON(upgradableResult())))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "bsc", doc["network"])
	assert.Equal(t, float64(56), doc["chainId"])
	assert.Equal(t, true, doc["implementationReused"])

	record := doc["record"].(map[string]any)
	assert.Equal(t, proxyAddr.Hex(), record["address"])
	assert.Equal(t, implAddr.Hex(), record["implementation"])
	assert.Equal(t, "2021-07-01T10:00:00.000Z", record["date"])

	warnings := doc["warnings"].([]any)
	require.Len(t, warnings, 2)
	assert.Equal(t, "timeout", warnings[1].(map[string]any)["error"])
}

func TestStageTitle(t *testing.T) {
	assert.Equal(t, "Tag Check", StageTitle(usecase.StageTagCheck))
	assert.Equal(t, "Deploy", StageTitle(usecase.StageDeploy))
}

func TestFormatError(t *testing.T) {
	addr := proxyAddr
	err := &domain.ReleaseError{
		Stage:        usecase.StagePersist,
		Network:      "bsc",
		ContractType: "tribe",
		Address:      &addr,
		Err:          errors.New("disk full"),
	}

	msg := FormatError(err)
	assert.Contains(t, msg, "Persist failed for tribe on bsc: disk full")
	assert.Contains(t, msg, "deployed at "+proxyAddr.Hex())

	assert.Equal(t, "❌ Network is required", FormatError(errors.New("network is required")))
}

func TestReleasesRenderer(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewReleasesRenderer(&buf).RenderReleaseList(&usecase.ReleaseListResult{Network: "bsc"}))
		assert.Equal(t, "No releases found on bsc\n", buf.String())
	})

	t.Run("groups", func(t *testing.T) {
		result := &usecase.ReleaseListResult{
			Network: "bsc",
			Total:   2,
			Groups: []usecase.ReleaseGroup{
				{ContractType: "token", Records: []models.DeploymentRecord{{
					Address:    implAddr,
					Version:    "0123456789abcdef",
					Date:       time.Date(2021, 7, 1, 10, 0, 0, 0, time.UTC),
					Deployment: models.Simple(),
				}}},
				{ContractType: "tribe", Records: []models.DeploymentRecord{upgradableResult().Record}},
			},
		}

		var buf bytes.Buffer
		require.NoError(t, NewReleasesRenderer(&buf).RenderReleaseList(result))
		out := buf.String()

		assert.Contains(t, out, "Releases on bsc (2)")
		assert.Contains(t, out, "TAG")
		assert.Contains(t, out, "untagged")
		assert.Contains(t, out, "0123456789ab")
		assert.NotContains(t, out, "0123456789abcdef")
		assert.Contains(t, out, "2021-07-01 10:00")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("token")), bytes.Index(buf.Bytes(), []byte("tribe")))
	})
}

func TestFingerprintRenderer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFingerprintRenderer(&buf).Render(&usecase.FingerprintResult{
		Artifact:         "Tribe",
		Version:          "abc",
		BytecodeSize:     10,
		MetadataStripped: 5,
	}))
	assert.Equal(t, "Tribe abc\n  bytecode: 10 bytes (5 bytes of metadata ignored)\n", buf.String())
}
