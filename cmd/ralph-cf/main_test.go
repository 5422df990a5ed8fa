package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(normalizeFlags(args))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestDebugFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, flagName := range debugFlagNames {
		if cmd.Flags().Lookup(flagName) == nil {
			t.Errorf("expected flag --%s to exist", flagName)
		}
	}
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"single-dash dcf", []string{"-dcf", "f.yaml"}, []string{"--dcf", "f.yaml"}},
		{"double-dash unchanged", []string{"--dtypes", "f.yaml"}, []string{"--dtypes", "f.yaml"}},
		{"other flags unchanged", []string{"-v", "-j", "2", "f.yaml"}, []string{"-v", "-j", "2", "f.yaml"}},
		{"several", []string{"-dssa", "-dregalloc", "f.yaml"}, []string{"--dssa", "--dregalloc", "f.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeFlags(tt.input))
		})
	}
}

func TestNoArgsShowsHelp(t *testing.T) {
	out, _, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "ralph-cf")
}

func TestSummary(t *testing.T) {
	out, _, err := execute(t, "testdata/sum.yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Example.sum: "), out)
	assert.True(t, strings.HasSuffix(out, " instructions, locals = 3, stack = 2\n"), out)
}

func TestGolden(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sum_dssa", []string{"-dssa", "testdata/sum.yaml"}},
		{"sum_dregalloc", []string{"-dregalloc", "testdata/sum.yaml"}},
		{"sum_dcf", []string{"-dcf", "testdata/sum.yaml"}},
		{"pick_dtypes", []string{"-dtypes", "testdata/pick.yaml"}},
		{"sum_run", []string{"--run", "10", "testdata/sum.yaml"}},
		{"counter_run", []string{"--run", "4", "testdata/counter.cue"}},
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut, err := execute(t, tt.args...)
			require.NoError(t, err, errOut)
			g.Assert(t, tt.name, []byte(out))
		})
	}
}

func TestRunWithoutRematerialization(t *testing.T) {
	out, _, err := execute(t, "--no-remat", "--verify-alloc", "--run", "0", "--run", "7", "testdata/sum.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Example.sum(0) = 0\nExample.sum(7) = 21\n", out)
}

func TestRunReferenceArguments(t *testing.T) {
	out, _, err := execute(t, "--run", "new, 0", "--run", "null, 1", "testdata/pick.yaml")
	require.NoError(t, err)
	assert.Equal(t, "Example.pick(new, 0) = new Foo\nExample.pick(null, 1) = null\n", out)
}

func TestRunBadArguments(t *testing.T) {
	_, errOut, err := execute(t, "--run", "1, 2", "testdata/sum.yaml")
	require.Error(t, err)
	assert.Contains(t, errOut, "2 arguments given, 1 expected")
}

func TestEnvironmentDefaults(t *testing.T) {
	t.Setenv("RALPH_CF_NO_REMAT", "1")
	out, _, err := execute(t, "-dcf", "testdata/sum.yaml")
	require.NoError(t, err)
	// Constants get slots instead of being re-emitted at their uses
	assert.NotContains(t, out, "  const 1\n  add.int")
	assert.Contains(t, out, "  const 1\n  store.i")
}

func TestVerboseLogging(t *testing.T) {
	_, errOut, err := execute(t, "-v", "testdata/sum.yaml")
	require.NoError(t, err)
	assert.Contains(t, errOut, "slots allocated")
	assert.Contains(t, errOut, "batch=")
}

func TestCompileErrors(t *testing.T) {
	tmpDir := t.TempDir()
	src := `methods:
  - class: Example
    name: pick
    static: true
    params: [Foo, int]
    return: java/lang/Object
    blocks:
      - name: entry
        insts:
          - {out: p, op: arg, index: 0}
          - {out: c, op: arg, index: 1}
          - {op: if.ne, args: [c], then: left, else: right}
      - name: left
        insts:
          - {op: goto, target: join}
      - name: right
        insts:
          - {out: o, op: const.string, value: s}
          - {op: goto, target: join}
      - name: join
        phis:
          - {out: r, type: ref, from: {left: p, right: o}}
        insts:
          - {op: return, args: [r]}
`
	testFile := filepath.Join(tmpDir, "pick.yaml")
	require.NoError(t, os.WriteFile(testFile, []byte(src), 0644))

	_, errOut, err := execute(t, testFile)
	require.Error(t, err)
	assert.Contains(t, errOut, "ralph-cf: Example.pick")
	assert.Contains(t, errOut, "not implemented")
}

func TestMissingFile(t *testing.T) {
	_, errOut, err := execute(t, "testdata/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, errOut, "ralph-cf:")
}
