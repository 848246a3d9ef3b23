package zipoffset_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zipper/zipprefix/internal/zipfixture"
	"github.com/go-zipper/zipprefix/pkg/zipoffset"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestValidateOffsets_ConsistentArchivePasses(t *testing.T) {
	archive := zipfixture.Build([]zipfixture.Entry{
		{Name: "a.txt", Data: []byte("hello")},
	}, zipfixture.Options{})
	path := writeFile(t, t.TempDir(), "archive.zip", archive)

	assert.NoError(t, zipoffset.ValidateOffsets(path))
}

func TestValidateOffsets_StaleOffsetsFail(t *testing.T) {
	archive := zipfixture.Build([]zipfixture.Entry{
		{Name: "a.txt", Data: []byte("hello")},
	}, zipfixture.Options{})
	prefixed := zipfixture.Prepend([]byte("not-yet-adjusted"), archive)
	path := writeFile(t, t.TempDir(), "archive.zip", prefixed)

	err := zipoffset.ValidateOffsets(path)
	require.Error(t, err)
	var zerr *zipoffset.Error
	require.True(t, errors.As(err, &zerr))
	assert.Equal(t, zipoffset.StructuralZip, zerr.Kind)
}

func TestAdjustOffsets_LeavesFileUntouchedOnStructuralFailure(t *testing.T) {
	original := []byte("this isn't a zip file at all, just enough padding bytes")
	path := writeFile(t, t.TempDir(), "not-a-zip.bin", original)

	err := zipoffset.AdjustOffsets(path, 5)
	require.Error(t, err)

	got, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, original, got)
}

func TestAdjustOffsets_RewritesOffsetsToMatchPhysicalPrefix(t *testing.T) {
	archive := zipfixture.Build([]zipfixture.Entry{
		{Name: "a.txt", Data: []byte("hello")},
		{Name: "b.txt", Data: []byte("world")},
	}, zipfixture.Options{})
	prefix := []byte("#!/bin/sh\nexit 0\n")
	prefixed := zipfixture.Prepend(prefix, archive)
	path := writeFile(t, t.TempDir(), "archive.zip", prefixed)

	err := zipoffset.AdjustOffsets(path, int64(len(prefix)))
	require.NoError(t, err)

	assert.NoError(t, zipoffset.ValidateOffsets(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, prefix, got[:len(prefix)])
}

func TestAdjustOffsets_ZeroDisplacementIsValidateOnly(t *testing.T) {
	archive := zipfixture.Build([]zipfixture.Entry{
		{Name: "a.txt", Data: []byte("hello")},
	}, zipfixture.Options{})
	path := writeFile(t, t.TempDir(), "archive.zip", archive)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, zipoffset.AdjustOffsets(path, 0))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAdjustOffsets_MissingFile(t *testing.T) {
	err := zipoffset.AdjustOffsets(filepath.Join(t.TempDir(), "missing.zip"), 1)
	assert.Error(t, err)
}
