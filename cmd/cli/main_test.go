package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gomulm/internal/errors"
	"gomulm/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func writeCSV(t *testing.T, dir, name string, m mat.Matrix, prefix string) string {
	t.Helper()
	r, c := m.Dims()
	var b strings.Builder
	for j := 0; j < c; j++ {
		if j > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%s%d", prefix, j)
	}
	b.WriteString("\n")
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "%.17g", m.At(i, j))
		}
		b.WriteString("\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, key := range []string{"MULM_PERMUTATIONS", "MULM_SEED", "MULM_WORKERS", "MULM_TWO_TAILED", "MULM_ALPHA", "MULM_PVALUES", "MULM_FAMILY", "MULM_ADDR", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return out.String(), err
}

func scenarioFiles(t *testing.T) (string, string) {
	t.Helper()
	s := testkit.NewTestKit(42).Regression(60, testkit.DefaultBeta, 2, 4)
	dir := t.TempDir()
	return writeCSV(t, dir, "x.csv", s.X, "x"), writeCSV(t, dir, "y.csv", s.Y, "y")
}

func TestTTestCommandJSON(t *testing.T) {
	x, y := scenarioFiles(t)
	out, err := runCLI(t, "ttest", "--design", x, "--response", y, "--contrast", "1,0,0,0,0;0,0,1,0,0", "--format", "json")
	require.NoError(t, err)

	var res struct {
		T  [][]float64 `json:"t"`
		P  [][]float64 `json:"p"`
		DF float64     `json:"df"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.T, 2)
	assert.Len(t, res.T[0], 6)
	assert.InDelta(t, 55, res.DF, 1e-9)
	assert.Less(t, res.P[0][0], 1e-6)
}

func TestMaxTCommandWritesOutput(t *testing.T) {
	x, y := scenarioFiles(t)
	outPath := filepath.Join(t.TempDir(), "corrected.csv")

	out, err := runCLI(t, "maxt", "--design", x, "--response", y, "--permutations", "50", "--family", "contrast", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "maxT corrected p")
	assert.Contains(t, out, "permutations=50")

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "contrast,y0,y1"))
}

func TestOutIsWrittenInJSONMode(t *testing.T) {
	x, y := scenarioFiles(t)
	dir := t.TempDir()

	for _, command := range []string{"fit", "ttest", "ftest", "maxt", "analyze"} {
		t.Run(command, func(t *testing.T) {
			outPath := filepath.Join(dir, command+".csv")
			out, err := runCLI(t, command, "--design", x, "--response", y, "--permutations", "30", "--format", "json", "--out", outPath)
			require.NoError(t, err)
			assert.True(t, json.Valid([]byte(out)))

			content, err := os.ReadFile(outPath)
			require.NoError(t, err)
			assert.Contains(t, string(content), "y0,y1,y2,y3,y4,y5")
		})
	}

	_, err := runCLI(t, "split", "--design", x, "--response", y, "--out", filepath.Join(dir, "split.csv"))
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestFitFTestSplitAndAnalyze(t *testing.T) {
	x, y := scenarioFiles(t)

	out, err := runCLI(t, "fit", "--design", x, "--response", y)
	require.NoError(t, err)
	assert.Contains(t, out, "rank=5")

	out, err = runCLI(t, "ftest", "--design", x, "--response", y, "--contrast", "1,0,0,0,0;0,1,0,0,0")
	require.NoError(t, err)
	assert.Contains(t, out, "df=(2, 55)")

	out, err = runCLI(t, "split", "--design", x, "--response", y, "--y-groups", "0,0,1,1,2,2")
	require.NoError(t, err)
	assert.Contains(t, out, "block x=0 y=2")

	out, err = runCLI(t, "analyze", "--design", x, "--response", y, "--permutations", "40", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id"`)
	assert.Contains(t, out, `"corrected"`)
}

func TestCommandErrors(t *testing.T) {
	x, y := scenarioFiles(t)

	_, err := runCLI(t, "ttest", "--design", x)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = runCLI(t, "ttest", "--design", x, "--response", y, "--contrast", "1,0")
	assert.True(t, errors.HasCode(err, errors.CodeDimension))

	_, err = runCLI(t, "maxt", "--design", x, "--response", y, "--permutations", "0")
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	_, err = runCLI(t, "fit", "--design", x, "--response", y, "--format", "yaml")
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))

	_, err = parseGroups("0,1", 3)
	assert.True(t, errors.HasCode(err, errors.CodeDimension))
}
