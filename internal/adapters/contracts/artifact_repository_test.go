package contracts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trebuchet-org/treb-release/internal/domain"
)

const testABI = `[{"type":"constructor","inputs":[{"name":"_admin","type":"address"}]},{"type":"function","name":"initialize","inputs":[{"name":"_admin","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func foundryArtifact(source, name, bytecode string) string {
	return `{"abi":` + testABI + `,"bytecode":{"object":"` + bytecode + `"},"metadata":{"compiler":{"version":"0.8.4+commit.c7e474f2"},"settings":{"compilationTarget":{"` + source + `":"` + name + `"}}}}`
}

func newTestRepo(t *testing.T, dirs ...string) *ArtifactRepository {
	return NewArtifactRepository(dirs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestArtifactRepository_GetArtifact(t *testing.T) {
	ctx := context.Background()

	t.Run("foundry layout", func(t *testing.T) {
		root := t.TempDir()
		out := filepath.Join(root, "out")
		writeFile(t, filepath.Join(out, "TribeStaking.sol", "TribeStaking.json"), foundryArtifact("src/TribeStaking.sol", "TribeStaking", "0x6080"))
		writeFile(t, filepath.Join(out, "build-info", "abc.json"), `{"id":"abc"}`)

		a, err := newTestRepo(t, out).GetArtifact(ctx, "TribeStaking")
		require.NoError(t, err)
		assert.Equal(t, "src/TribeStaking.sol", a.SourcePath)
		assert.Equal(t, "0x6080", a.Bytecode)
		assert.Equal(t, "0.8.4+commit.c7e474f2", a.CompilerVersion)
		_, ok := a.ABI.Methods["initialize"]
		assert.True(t, ok)
	})

	t.Run("hardhat layout", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "artifacts")
		writeFile(t, filepath.Join(dir, "contracts", "Token.sol", "Token.json"),
			`{"contractName":"Token","sourceName":"contracts/Token.sol","abi":`+testABI+`,"bytecode":"0x6001"}`)
		writeFile(t, filepath.Join(dir, "contracts", "Token.sol", "Token.dbg.json"), `{"buildInfo":"x"}`)

		a, err := newTestRepo(t, dir).GetArtifact(ctx, "Token")
		require.NoError(t, err)
		assert.Equal(t, "contracts/Token.sol:Token", a.FullyQualifiedName())
		assert.Equal(t, "0x6001", a.Bytecode)
	})

	t.Run("interfaces are skipped", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out")
		writeFile(t, filepath.Join(out, "IToken.sol", "IToken.json"), foundryArtifact("src/IToken.sol", "IToken", "0x"))

		_, err := newTestRepo(t, out).GetArtifact(ctx, "IToken")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("ambiguous names need a qualified lookup", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out")
		writeFile(t, filepath.Join(out, "a", "Vault.json"), foundryArtifact("src/a/Vault.sol", "Vault", "0x60"))
		writeFile(t, filepath.Join(out, "b", "Vault.json"), foundryArtifact("src/b/Vault.sol", "Vault", "0x61"))
		repo := newTestRepo(t, out)

		_, err := repo.GetArtifact(ctx, "Vault")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "src/a/Vault.sol:Vault")

		a, err := repo.GetArtifact(ctx, "src/b/Vault.sol:Vault")
		require.NoError(t, err)
		assert.Equal(t, "0x61", a.Bytecode)
	})

	t.Run("missing directories", func(t *testing.T) {
		_, err := newTestRepo(t, filepath.Join(t.TempDir(), "nope")).GetArtifact(ctx, "X")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
