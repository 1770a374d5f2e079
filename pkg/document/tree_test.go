package document_test

import (
	"strings"
	"testing"

	"github.com/aretw0/vmtune/internal/testutils"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree_RoundTrip(t *testing.T) {
	inputs := map[string]string{
		"libvirt domain":      testutils.DomainXML,
		"prolog and doctype":  "<?xml version=\"1.0\"?>\n<!DOCTYPE domain>\n<domain>\n\t<name>a&amp;b</name>\n</domain>",
		"no trailing newline": "<domain><devices/></domain>",
		"crlf and cdata":      "<domain>\r\n  <description><![CDATA[<raw>]]></description>\r\n</domain>\r\n",
		"double quotes":       `<domain type="kvm"><on_poweroff>destroy</on_poweroff></domain>`,
		"comment after root":  "<domain/>\n<!-- trailing -->\n",
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			tree, err := document.ParseTree(in)
			require.NoError(t, err)
			assert.Equal(t, in, tree.String(), "untouched tree must serialize byte-identically")
		})
	}
}

func TestParseTree_Errors(t *testing.T) {
	bad := map[string]string{
		"mismatched tags": "<domain><name></domain></name>",
		"unclosed":        "<domain><devices>",
		"two roots":       "<a/><b/>",
		"stray text":      "hello <domain/>",
		"empty":           "   ",
		"unquoted attr":   "<domain type=kvm/>",
	}

	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := document.ParseTree(in)
			var perr *document.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, document.KindTree, perr.Kind)
		})
	}
}

func TestParseTree_QuoteStylesCompareEqual(t *testing.T) {
	a, err := document.ParseElement(`<memballoon model="none"/>`)
	require.NoError(t, err)
	b, err := document.ParseElement(`<memballoon model='none'></memballoon>`)
	require.NoError(t, err)

	assert.True(t, document.Equal(a, b, nil))
	assert.Equal(t, "<memballoon model='none'/>", a.String(), "fresh nodes render with single quotes")
}

func TestCanonical_IgnoresOrderAndAssignedChildren(t *testing.T) {
	a, err := document.ParseElement(`<shmem name='lg'><model type='ivshmem-plain'/><size unit='M'>32</size></shmem>`)
	require.NoError(t, err)
	b, err := document.ParseElement(`<shmem name="lg">
  <size unit="M">32</size>
  <model type="ivshmem-plain"/>
  <address type='pci' bus='0x10'/>
</shmem>`)
	require.NoError(t, err)

	assert.False(t, document.Equal(a, b, nil))
	assert.True(t, document.Equal(a, b, map[string]bool{"address": true}))
}

func TestInsertChild_BeforeAnchorKeepsIndentation(t *testing.T) {
	tree, err := document.ParseTree(testutils.DomainXML)
	require.NoError(t, err)

	root := tree.Root()
	memoryPos := -1
	for i, el := range root.Elements("") {
		if el.Tag == "memory" {
			memoryPos = i
		}
	}
	require.NotEqual(t, -1, memoryPos)

	node, err := document.ParseElement(`<cputune><vcpupin vcpu="0" cpuset="2"/><emulatorpin cpuset="0-1"/></cputune>`)
	require.NoError(t, err)
	document.InsertChild(root, node, memoryPos)

	out := tree.String()
	want := "  <!-- gpu passthrough guest -->\n" +
		"  <cputune>\n" +
		"    <vcpupin vcpu='0' cpuset='2'/>\n" +
		"    <emulatorpin cpuset='0-1'/>\n" +
		"  </cputune>\n" +
		"  <memory unit=\"KiB\">16777216</memory>\n"
	assert.Contains(t, out, want)
	assert.Equal(t, "/domain[1]/cputune[1]", document.PathOf(node))

	// Everything outside the inserted block is untouched.
	assert.Equal(t, testutils.DomainXML, strings.Replace(out,
		"  <cputune>\n    <vcpupin vcpu='0' cpuset='2'/>\n    <emulatorpin cpuset='0-1'/>\n  </cputune>\n", "", 1))
}

func TestInsertChild_AppendAndRemoveRoundTrip(t *testing.T) {
	tree, err := document.ParseTree(testutils.DomainXML)
	require.NoError(t, err)

	devices, err := tree.Resolve("/domain[1]/devices[1]")
	require.NoError(t, err)

	shmem, err := document.ParseElement(`<shmem name='looking-glass'><model type='ivshmem-plain'/><size unit='M'>32</size></shmem>`)
	require.NoError(t, err)
	document.InsertChild(devices, shmem, -1)

	out := tree.String()
	assert.Contains(t, out, "    </memballoon>\n    <shmem name='looking-glass'>\n      <model type='ivshmem-plain'/>\n      <size unit='M'>32</size>\n    </shmem>\n  </devices>")

	require.NoError(t, document.Remove(shmem))
	assert.Equal(t, testutils.DomainXML, tree.String(), "insert then remove restores the original bytes")
}

func TestInsertChild_IntoSelfClosingParent(t *testing.T) {
	tree, err := document.ParseTree("<domain>\n  <cpu mode=\"host-passthrough\"/>\n</domain>\n")
	require.NoError(t, err)

	cpu, err := tree.Resolve("/domain/cpu")
	require.NoError(t, err)
	feature, err := document.ParseElement(`<feature policy='require' name='topoext'/>`)
	require.NoError(t, err)
	document.InsertChild(cpu, feature, -1)

	assert.Equal(t, "<domain>\n  <cpu mode='host-passthrough'>\n    <feature policy='require' name='topoext'/>\n  </cpu>\n</domain>\n", tree.String())
}

func TestRemove_DropsLeadingBlank(t *testing.T) {
	tree, err := document.ParseTree(testutils.DomainXML)
	require.NoError(t, err)

	balloon, err := tree.Resolve("/domain/devices/memballoon")
	require.NoError(t, err)
	require.NoError(t, document.Remove(balloon))

	out := tree.String()
	assert.NotContains(t, out, "memballoon")
	assert.Contains(t, out, "    </disk>\n  </devices>")

	assert.Error(t, document.Remove(tree.Root()), "root cannot be removed")
}

func TestResolve_Errors(t *testing.T) {
	tree, err := document.ParseTree(testutils.DomainXML)
	require.NoError(t, err)

	_, err = tree.Resolve("/domain/devices/shmem")
	assert.Error(t, err)
	_, err = tree.Resolve("/vm/devices")
	assert.Error(t, err)
	_, err = tree.Resolve("/domain/devices[x]")
	assert.Error(t, err)
}

func TestClone_IsIndependent(t *testing.T) {
	tree, err := document.ParseTree(testutils.DomainXML)
	require.NoError(t, err)

	cp := tree.Clone()
	balloon, err := cp.Resolve("/domain/devices/memballoon")
	require.NoError(t, err)
	require.NoError(t, document.Remove(balloon))

	assert.Equal(t, testutils.DomainXML, tree.String())
	assert.NotEqual(t, tree.String(), cp.String())
}
