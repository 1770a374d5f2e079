package document_test

import (
	"testing"

	"github.com/aretw0/vmtune/internal/testutils"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParamLine_RoundTrip(t *testing.T) {
	inputs := []string{
		testutils.GrubDefault,
		"GRUB_CMDLINE_LINUX_DEFAULT='quiet   splash\tamd_iommu=on '\n",
		"GRUB_CMDLINE_LINUX_DEFAULT=quiet # inline comment\n",
		"export GRUB_CMDLINE_LINUX_DEFAULT=\"\"",
		"#GRUB_CMDLINE_LINUX_DEFAULT=\"old\"\nGRUB_CMDLINE_LINUX_DEFAULT=\"  quiet\"\n",
		`GRUB_CMDLINE_LINUX_DEFAULT="quiet acpi_osi=\"Windows 2015\""` + "\n",
		`GRUB_CMDLINE_LINUX_DEFAULT='quiet acpi_osi="Windows 2015"'` + "\n",
	}

	for _, in := range inputs {
		p, err := document.ParseParamLine(in, testutils.GrubKey)
		require.NoError(t, err, in)
		assert.Equal(t, in, p.String())
	}
}

func TestParseParamLine_Tokens(t *testing.T) {
	p, err := document.ParseParamLine(`GRUB_CMDLINE_LINUX_DEFAULT="quiet isolcpus=2-70  vfio-pci.ids=10de:1b80,10de:10f0"`, testutils.GrubKey)
	require.NoError(t, err)

	require.Len(t, p.Tokens, 3)
	assert.Equal(t, "quiet", p.Tokens[0].Key())
	assert.Equal(t, "", p.Tokens[0].Value())
	assert.Equal(t, "isolcpus", p.Tokens[1].Key())
	assert.Equal(t, "2-70", p.Tokens[1].Value())
	assert.Equal(t, "10de:1b80,10de:10f0", p.Tokens[2].Value())
	assert.Equal(t, []int{1}, p.IndexesOfKey("isolcpus"))
	assert.Empty(t, p.IndexesOfKey("isolcpus=2-7"), "keys never match across token boundaries")
}

func TestParseParamLine_Errors(t *testing.T) {
	bad := map[string]string{
		"missing":      "GRUB_TIMEOUT=5\n",
		"commented":    "# GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\"\n",
		"duplicate":    "GRUB_CMDLINE_LINUX_DEFAULT=\"a\"\nGRUB_CMDLINE_LINUX_DEFAULT=\"b\"\n",
		"unterminated": "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet\nGRUB_TIMEOUT=5\n",
		"escaped tail": `GRUB_CMDLINE_LINUX_DEFAULT="quiet acpi_osi=\"Windows 2015\"` + "\n",
		"unbalanced":   `GRUB_CMDLINE_LINUX_DEFAULT="quiet acpi_osi=\"Windows 2015"` + "\n",
		"bare quote":   `GRUB_CMDLINE_LINUX_DEFAULT=acpi_osi="Linux"` + "\n",
	}
	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := document.ParseParamLine(in, testutils.GrubKey)
			var perr *document.ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseParamLine_QuotedValues(t *testing.T) {
	cases := map[string]string{
		"escaped": `GRUB_CMDLINE_LINUX_DEFAULT="quiet acpi_osi=\"Windows 2015\" splash"`,
		"single":  `GRUB_CMDLINE_LINUX_DEFAULT='quiet acpi_osi="Windows 2015" splash'`,
	}
	want := map[string]string{
		"escaped": `acpi_osi=\"Windows 2015\"`,
		"single":  `acpi_osi="Windows 2015"`,
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := document.ParseParamLine(in, testutils.GrubKey)
			require.NoError(t, err)
			require.Len(t, p.Tokens, 3)
			assert.Equal(t, want[name], p.Tokens[1].Text)
			assert.Equal(t, "acpi_osi", p.Tokens[1].Key())
			assert.Equal(t, "splash", p.Tokens[2].Text)

			p.InsertTokens(-1, "iommu=pt")
			assert.Equal(t, in[:len(in)-1]+" iommu=pt"+in[len(in)-1:], p.String(), "the closing quote stays last")
		})
	}
}

func TestParamLine_Edits(t *testing.T) {
	p, err := document.ParseParamLine(testutils.GrubDefault, testutils.GrubKey)
	require.NoError(t, err)

	p.InsertTokens(-1, "isolcpus=2-7", "nohz_full=2-7")
	assert.Contains(t, p.String(), "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet isolcpus=2-7 nohz_full=2-7\"\nGRUB_CMDLINE_LINUX=\"\"\n")

	require.NoError(t, p.ReplaceTokens([]string{"isolcpus=2-7"}, []string{"isolcpus=4-9"}))
	assert.Equal(t, "quiet isolcpus=4-9 nohz_full=2-7", p.Value())

	_, err = p.RemoveTokens("quiet")
	require.NoError(t, err)
	assert.Contains(t, p.String(), "GRUB_CMDLINE_LINUX_DEFAULT=\"isolcpus=4-9 nohz_full=2-7\"\n")

	p.InsertTokens(0, "splash")
	assert.Equal(t, "splash isolcpus=4-9 nohz_full=2-7", p.Value())

	_, err = p.RemoveTokens("nomodeset")
	assert.Error(t, err)
}

func TestParamLine_UnquotedGainsQuotes(t *testing.T) {
	p, err := document.ParseParamLine("GRUB_CMDLINE_LINUX_DEFAULT=quiet\n", testutils.GrubKey)
	require.NoError(t, err)

	p.InsertTokens(-1, "iommu=pt")
	assert.Equal(t, "GRUB_CMDLINE_LINUX_DEFAULT=\"quiet iommu=pt\"\n", p.String())
}

func TestParse_Dispatch(t *testing.T) {
	doc, err := document.Parse(document.KindTree, testutils.DomainXML, "")
	require.NoError(t, err)
	assert.Equal(t, document.KindTree, doc.Kind())

	doc, err = document.Parse(document.KindParamLine, testutils.GrubDefault, testutils.GrubKey)
	require.NoError(t, err)
	assert.Equal(t, document.KindParamLine, doc.Kind())

	_, err = document.Parse("ini", "", "")
	assert.Error(t, err)
}
