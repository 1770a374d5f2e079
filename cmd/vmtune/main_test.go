package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/vmtune/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	dir    string
	grub   string
	config string
}

// newEnv writes a boot file and a config that keeps all state inside a temp dir.
func newEnv(t *testing.T, regenerate string) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{dir: dir, grub: filepath.Join(dir, "grub"), config: filepath.Join(dir, "vmtune.yaml")}
	require.NoError(t, os.WriteFile(e.grub, []byte(testutils.GrubDefault), 0o644))
	e.writeConfig(t, regenerate)
	return e
}

func (e *env) writeConfig(t *testing.T, regenerate string) {
	t.Helper()
	cfg := fmt.Sprintf(`backup_dir: %s
journal: %s
log_level: error
metrics_file: %s
boot:
  path: %s
  regenerate: %q
params:
  iommu:
    vendor: amd
`, filepath.Join(e.dir, "backups"), filepath.Join(e.dir, "journal.db"), filepath.Join(e.dir, "vmtune.prom"), e.grub, regenerate)
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))
}

func (e *env) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"--config", e.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLI_ApplyIsIdempotent(t *testing.T) {
	e := newEnv(t, "")

	code, out, errOut := e.run(t, "apply", "isolation", "--set", "cores=2-7")
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "apply isolation on "+e.grub+": Applied")
	assert.Contains(t, out, `+GRUB_CMDLINE_LINUX_DEFAULT="quiet isolcpus=2-7 nohz_full=2-7 rcu_nocbs=2-7"`)
	assert.Contains(t, testutils.ReadFile(t, e.grub), "isolcpus=2-7")

	code, out, _ = e.run(t, "apply", "isolation", "--set", "cores=2-7")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "Unchanged")
	assert.NotContains(t, out, "+GRUB")

	metrics := testutils.ReadFile(t, filepath.Join(e.dir, "vmtune.prom"))
	assert.Contains(t, metrics, `vmtune_reconciliations_total{kind="isolation",outcome="Unchanged"} 1`)

	code, out, _ = e.run(t, "history", e.grub)
	require.Equal(t, exitOK, code)
	assert.Equal(t, 2, strings.Count(out, "isolation"))
}

func TestCLI_ParamsFromConfigAndFile(t *testing.T) {
	e := newEnv(t, "")

	code, out, _ := e.run(t, "apply", "iommu", "--dry-run")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "amd_iommu=on iommu=pt")
	assert.Equal(t, testutils.GrubDefault, testutils.ReadFile(t, e.grub))

	params := testutils.WriteFile(t, "vfio.toml", `ids = ["10de:2684", "10de:22ba"]`)
	code, _, errOut := e.run(t, "apply", "vfio-bind", "-f", params)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, testutils.ReadFile(t, e.grub), "vfio-pci.ids=10de:2684,10de:22ba")
}

func TestCLI_Status(t *testing.T) {
	e := newEnv(t, "")

	code, out, _ := e.run(t, "status", "iommu")
	assert.Equal(t, exitNotSatisfied, code)
	assert.Contains(t, out, "Absent")

	code, _, _ = e.run(t, "apply", "iommu")
	require.Equal(t, exitOK, code)

	code, out, _ = e.run(t, "status", "iommu")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Satisfied")

	code, out, _ = e.run(t, "status", "--all")
	assert.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "isolation")
	assert.Contains(t, out, "skipped")

	code, _, _ = e.run(t, "status")
	assert.Equal(t, exitUsage, code, "a kind or --all is required")
}

func TestCLI_RollbackFailedThenRestore(t *testing.T) {
	e := newEnv(t, "false") // the regenerate command always fails

	code, _, errOut := e.run(t, "apply", "hugepage-reservation", "--set", "count=4")
	require.Equal(t, exitRollbackFailed, code)
	assert.Contains(t, errOut, "RollbackFailed")

	code, out, _ := e.run(t, "backup", "ls")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, out)
	fields := strings.Fields(lines[1])
	path := fields[len(fields)-1]

	e.writeConfig(t, "")
	code, _, errOut = e.run(t, "backup", "restore", path)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, testutils.GrubDefault, testutils.ReadFile(t, e.grub))
}

func TestCLI_Errors(t *testing.T) {
	e := newEnv(t, "")

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown flag", []string{"apply", "isolation", "--bogus"}, exitUsage},
		{"missing kind", []string{"apply"}, exitUsage},
		{"descriptor kind without domain", []string{"apply", "memballoon"}, exitUsage},
		{"malformed set", []string{"apply", "isolation", "--set", "cores"}, exitUsage},
		{"unknown kind", []string{"apply", "overclock"}, exitFailed},
		{"invalid params", []string{"apply", "isolation", "--set", "cores=all"}, exitFailed},
		{"missing config file", []string{"--config", filepath.Join(e.dir, "nope.yaml"), "status", "iommu"}, exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := e.run(t, tt.args...)
			assert.Equal(t, tt.code, code, errOut)
		})
	}
	assert.Equal(t, testutils.GrubDefault, testutils.ReadFile(t, e.grub))
}

func TestCLI_KindsAndVersion(t *testing.T) {
	e := newEnv(t, "")

	code, out, _ := e.run(t, "kinds")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "| `isolation` | paramline | cores |")

	code, out, _ = e.run(t, "version")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "vmtune version dev\n", out)
}
