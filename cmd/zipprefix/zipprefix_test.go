package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-zipper/zipprefix/internal/zipfixture"
)

func writeArchive(t *testing.T, dir string) string {
	t.Helper()
	archive := zipfixture.Build([]zipfixture.Entry{
		{Name: "a.txt", Data: []byte("hello")},
	}, zipfixture.Options{})
	path := filepath.Join(dir, "archive.zip")
	require.NoError(t, os.WriteFile(path, archive, 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRootCommand()
	root.AddCommand(buildValidateCommand())
	root.AddCommand(buildAdjustCommand())
	root.AddCommand(buildPrefixCommand())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand_ValidArchive(t *testing.T) {
	path := writeArchive(t, t.TempDir())
	_, err := run(t, "validate", path)
	assert.NoError(t, err)
}

func TestValidateCommand_NotAZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-zip.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := run(t, "validate", path)
	assert.Error(t, err)
}

func TestAdjustCommand_AppliesDisplacement(t *testing.T) {
	dir := t.TempDir()
	archive := zipfixture.Build([]zipfixture.Entry{
		{Name: "a.txt", Data: []byte("hello")},
	}, zipfixture.Options{})
	prefixed := zipfixture.Prepend([]byte("1234567890"), archive)
	path := filepath.Join(dir, "archive.zip")
	require.NoError(t, os.WriteFile(path, prefixed, 0o644))

	_, err := run(t, "adjust", "--displacement", "10", path)
	require.NoError(t, err)

	_, err = run(t, "validate", path)
	assert.NoError(t, err)
}

func TestPrefixCommand_RequiresASource(t *testing.T) {
	path := writeArchive(t, t.TempDir())
	_, err := run(t, "prefix", path)
	assert.Error(t, err)
}

func TestPrefixCommand_PrependsBytes(t *testing.T) {
	path := writeArchive(t, t.TempDir())
	_, err := run(t, "prefix", "--bytes", "#!/bin/sh\n", path)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(got[:len("#!/bin/sh\n")]))

	_, err = run(t, "validate", path)
	assert.NoError(t, err)
}
