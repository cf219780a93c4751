package abi

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trebuchet-org/treb-release/internal/domain/models"
)

const stakingABI = `[
  {"type":"constructor","inputs":[{"name":"_token","type":"address"},{"name":"_rate","type":"uint256"}]},
  {"type":"function","name":"initialize","inputs":[{"name":"_admin","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"configure","inputs":[
    {"name":"fee","type":"uint16"},
    {"name":"enabled","type":"bool"},
    {"name":"label","type":"string"},
    {"name":"salt","type":"bytes32"},
    {"name":"holders","type":"address[]"},
    {"name":"delta","type":"int64"}
  ],"outputs":[],"stateMutability":"nonpayable"}
]`

func parseABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(stakingABI))
	require.NoError(t, err)
	return &parsed
}

func TestEncoder_EncodeConstructor(t *testing.T) {
	contractABI := parseABI(t)
	enc := NewEncoder()

	token := "0x822D71E46806081FA348aAB60A7b824B91e57825"
	got, err := enc.EncodeConstructor(contractABI, models.Args{"_rate": "1000", "_token": token})
	require.NoError(t, err)

	want, err := contractABI.Pack("", common.HexToAddress(token), big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	t.Run("numbers from yaml and json", func(t *testing.T) {
		for _, rate := range []any{1000, int64(1000), float64(1000), "0x3e8"} {
			got, err := enc.EncodeConstructor(contractABI, models.Args{"_rate": rate, "_token": token})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := enc.EncodeConstructor(contractABI, models.Args{"_token": token})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "_rate")
	})

	t.Run("unknown argument", func(t *testing.T) {
		_, err := enc.EncodeConstructor(contractABI, models.Args{"_token": token, "_rate": 1, "_extra": 2})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "_extra")
	})

	t.Run("bad address", func(t *testing.T) {
		_, err := enc.EncodeConstructor(contractABI, models.Args{"_token": "0x123", "_rate": 1})
		assert.Error(t, err)
	})
}

func TestEncoder_EncodeCall(t *testing.T) {
	contractABI := parseABI(t)
	enc := NewEncoder()
	admin := "0x822D71E46806081FA348aAB60A7b824B91e57825"

	t.Run("initializer", func(t *testing.T) {
		got, err := enc.EncodeCall(contractABI, "initialize", models.Args{"_admin": admin})
		require.NoError(t, err)
		assert.Equal(t, "c4d66de8", hex.EncodeToString(got[:4]))
		assert.Len(t, got, 4+32)

		bySig, err := enc.EncodeCall(contractABI, "initialize(address)", models.Args{"_admin": admin})
		require.NoError(t, err)
		assert.Equal(t, got, bySig)
	})

	t.Run("mixed types", func(t *testing.T) {
		args := models.Args{
			"fee":     "500",
			"enabled": "true",
			"label":   "prod",
			"salt":    "0x01",
			"holders": []any{admin, admin},
			"delta":   -5,
		}
		got, err := enc.EncodeCall(contractABI, "configure", args)
		require.NoError(t, err)

		var salt [32]byte
		salt[0] = 0x01
		want, err := contractABI.Pack("configure", uint16(500), true, "prod", salt,
			[]common.Address{common.HexToAddress(admin), common.HexToAddress(admin)}, int64(-5))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("out of range", func(t *testing.T) {
		args := models.Args{"fee": 70000, "enabled": true, "label": "", "salt": "0x", "holders": []any{}, "delta": 0}
		_, err := enc.EncodeCall(contractABI, "configure", args)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "uint16")
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := enc.EncodeCall(contractABI, "init", models.Args{})
		assert.Error(t, err)
	})
}
