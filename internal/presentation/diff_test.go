package presentation

import (
	"testing"

	"github.com/aretw0/vmtune/pkg/registry"
	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	before := "<domain>\n  <vcpu>4</vcpu>\n</domain>\n"
	after := "<domain>\n  <vcpu>6</vcpu>\n</domain>\n"

	want := "--- win11 (current)\n" +
		"+++ win11 (desired)\n" +
		"@@ -1,3 +1,3 @@\n" +
		" <domain>\n" +
		"-  <vcpu>4</vcpu>\n" +
		"+  <vcpu>6</vcpu>\n" +
		" </domain>\n"
	assert.Equal(t, want, Diff("win11", before, after))
	assert.Empty(t, Diff("win11", before, before))
}

func TestDiff_LineEndings(t *testing.T) {
	got := Diff("grub", "KEY=\"quiet\"", "KEY=\"quiet iommu=pt\"")
	assert.Equal(t, "--- grub (current)\n"+
		"+++ grub (desired)\n"+
		"@@ -1 +1 @@\n"+
		"-KEY=\"quiet\"\n"+
		"+KEY=\"quiet iommu=pt\"\n", got)

	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb"))
	assert.Empty(t, splitLines(""))
}

func TestKindsMarkdown(t *testing.T) {
	md := KindsMarkdown(registry.Default().Kinds())
	assert.Contains(t, md, "| `cpu-pinning` | domain | cores, smt, offset, sibling_offset |")
	assert.Contains(t, md, "| `vfio-bind` | paramline | ids |")
}
