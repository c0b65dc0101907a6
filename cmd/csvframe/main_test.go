package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paveg/csvframe/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, _, err := execute(t, "", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "csvframe "+version.Version)
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "", "version", "--json")
		require.NoError(t, err)
		var info version.BuildInfo
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, version.Version, info.Version)
	})
}

func TestParseCmd_Stdin(t *testing.T) {
	out, stderr, err := execute(t, "a,b\n1,2\n3,4\n", "parse", "-", "--threads", "2", "-t", "b=int")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n3,4\n", out)
	assert.Contains(t, stderr, "parse finished")
}

func TestParseCmd_Options(t *testing.T) {
	data := "# generated\nx|y|z\n1|2|3\n4|5|6\n"
	out, _, err := execute(t, data, "parse", "-",
		"--delimiter", "|", "--skip-rows", "1", "--columns", "z,x", "--row-limit", "1", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "z,x\n3,1\n", out)
}

func TestParseCmd_CustomTerminator(t *testing.T) {
	out, _, err := execute(t, "a;b\r\n1;2\r\n", "parse", "-",
		"--delimiter", ";", "--line-terminator", `\r\n`, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", out)
}

func TestParseCmd_Files(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("id,name\n1,x\nBAD\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("id,name\n2,y\n"), 0o600))
	output := filepath.Join(dir, "out", "table.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(output), 0o755))
	errorsOutput := filepath.Join(dir, "out", "errors.tsv")

	_, _, err := execute(t, "", "parse", filepath.Join(dir, "*.csv"),
		"-o", output, "--errors-output", errorsOutput, "-t", "id=int", "--log-level", "error")
	require.NoError(t, err)

	table, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"id":1,"name":"x"}`, lines[0])
	assert.JSONEq(t, `{"id":2,"name":"y"}`, lines[1])

	stored, err := os.ReadFile(errorsOutput)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.csv")+"\tBAD\n", string(stored))
}

func TestParseCmd_Parquet(t *testing.T) {
	output := filepath.Join(t.TempDir(), "table.parquet")
	_, _, err := execute(t, "a\n1\n", "parse", "-", "-o", output, "--log-level", "error")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PAR1")))
}

func TestParseCmd_ConfigFile(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "opts.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"use_header": false, "delimiter": "\t"}`), 0o600))

	out, _, err := execute(t, "1\t2\n", "parse", "-", "--config", cfg, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "X1,X2\n1,2\n", out)
}

func TestParseCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "malformed line", args: []string{"parse", "-"}, want: "'stdin'"},
		{name: "bad type hint", args: []string{"parse", "-", "-t", "a"}, want: "name=type"},
		{name: "unknown type", args: []string{"parse", "-", "-t", "a=date"}, want: "date"},
		{name: "missing file", args: []string{"parse", "/does/not/exist.csv"}, want: "No files"},
		{name: "no path", args: []string{"parse"}, want: "arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "a,b\n1,2\nBAD\n", append(tt.args, "--log-level", "error")...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestUnescapeFlag(t *testing.T) {
	assert.Equal(t, "\t", unescapeFlag(`\t`))
	assert.Equal(t, "\r\n", unescapeFlag(`\r\n`))
	assert.Equal(t, `\`, unescapeFlag(`\\`))
	assert.Equal(t, "<|>", unescapeFlag("<|>"))
}
