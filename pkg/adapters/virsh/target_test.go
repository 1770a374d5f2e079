package virsh_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/vmtune/pkg/adapters/virsh"
	"github.com/aretw0/vmtune/pkg/domain"
	"github.com/aretw0/vmtune/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Target = (*virsh.Target)(nil)

// fakeVirsh keeps one definition per domain in dir, mimicking dumpxml and define.
const fakeVirsh = `#!/bin/sh
dir=$(dirname "$0")
if [ "$1" = "--connect" ]; then echo "$2" > "$dir/uri"; shift 2; fi
case "$1" in
dumpxml)
  [ "$2" = "--inactive" ] || { echo "want --inactive" >&2; exit 1; }
  if [ ! -f "$dir/$3.xml" ]; then
    echo "error: failed to get domain '$3'" >&2; exit 1
  fi
  cat "$dir/$3.xml" ;;
define)
  if grep -q bogus "$2"; then
    echo "error: XML document failed to validate against schema" >&2; exit 1
  fi
  name=$(sed -n 's:.*<name>\(.*\)</name>.*:\1:p' "$2")
  cp "$2" "$dir/$name.xml"
  echo "Domain '$name' defined from $2" ;;
*) echo "unknown command $1" >&2; exit 1 ;;
esac
`

func setup(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "virsh")
	require.NoError(t, os.WriteFile(bin, []byte(fakeVirsh), 0o755))
	return bin
}

func TestTarget_DefineExport(t *testing.T) {
	bin := setup(t)
	target := virsh.New("win11", virsh.WithBinary(bin), virsh.WithURI("qemu:///system"))

	_, err := target.Export(context.Background())
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)

	raw := "<domain type='kvm'>\n  <name>win11</name>\n</domain>\n"
	require.NoError(t, target.Define(context.Background(), raw))

	got, err := target.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	uri, err := os.ReadFile(filepath.Join(filepath.Dir(bin), "uri"))
	require.NoError(t, err)
	assert.Equal(t, "qemu:///system\n", string(uri))
}

func TestTarget_DefineRejected(t *testing.T) {
	bin := setup(t)
	target := virsh.New("win11", virsh.WithBinary(bin))

	err := target.Define(context.Background(), "<domain><name>win11</name><bogus/></domain>")
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.ErrorContains(t, err, "failed to validate")
}
