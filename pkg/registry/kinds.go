package registry

import (
	"encoding/xml"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
	"libvirt.org/go/libvirtxml"
)

// Built-in kind names.
const (
	KindCPUPinning          = "cpu-pinning"
	KindMemBalloon          = "memballoon"
	KindHugepages           = "hugepages"
	KindShmem               = "shmem"
	KindCPUFeature          = "cpu-feature"
	KindIsolation           = "isolation"
	KindVFIOBind            = "vfio-bind"
	KindIOMMU               = "iommu"
	KindHugepageReservation = "hugepage-reservation"
)

// Child tags libvirt fills in on define; they never count as drift.
var assigned = []string{"address", "alias"}

func builtins() []Kind {
	return []Kind{
		{Name: KindCPUPinning, Doc: document.KindTree, Description: "vcpu count, vcpupin layout and emulator pin", Usage: "cores, smt, offset, sibling_offset", Resolve: resolveCPUPinning},
		{Name: KindMemBalloon, Doc: document.KindTree, Description: "memory balloon device model", Usage: "enabled", Resolve: resolveMemBalloon},
		{Name: KindHugepages, Doc: document.KindTree, Description: "huge-page memory backing", Usage: "page_size, unit (stored as KiB)", Resolve: resolveHugepages},
		{Name: KindShmem, Doc: document.KindTree, Description: "shared-memory device keyed by name", Usage: "name, size, unit (stored as M), model, merge", Resolve: resolveShmem},
		{Name: KindCPUFeature, Doc: document.KindTree, Description: "CPU feature requirement keyed by name", Usage: "name, policy, merge", Resolve: resolveCPUFeature},
		{Name: KindIsolation, Doc: document.KindParamLine, Description: "isolcpus/nohz_full/rcu_nocbs over a core range", Usage: "cores", Resolve: resolveIsolation},
		{Name: KindVFIOBind, Doc: document.KindParamLine, Description: "vfio-pci.ids device binding", Usage: "ids", Resolve: resolveVFIOBind},
		{Name: KindIOMMU, Doc: document.KindParamLine, Description: "IOMMU enablement and passthrough mode", Usage: "vendor, passthrough", Resolve: resolveIOMMU},
		{Name: KindHugepageReservation, Doc: document.KindParamLine, Description: "boot-time huge page reservation", Usage: "size, count", Resolve: resolveHugepageReservation},
	}
}

// render encodes a libvirtxml value as element tag and returns it as a fresh node.
func render(tag string, v any) (*document.Node, error) {
	var b strings.Builder
	enc := xml.NewEncoder(&b)
	if err := enc.EncodeElement(v, xml.StartElement{Name: xml.Name{Local: tag}}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return document.ParseElement(b.String())
}

func mergePolicy(name string) (domain.MergePolicy, error) {
	switch name {
	case "", "replace":
		return domain.PolicyReplaceWhole, nil
	case "insert-if-absent":
		return domain.PolicyInsertIfAbsent, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q (want replace or insert-if-absent)", name)
	}
}

// --- domain descriptor kinds ---

type cpuPinningParams struct {
	Cores         int  `mapstructure:"cores"`
	SMT           bool `mapstructure:"smt"`
	Offset        int  `mapstructure:"offset"`
	SiblingOffset int  `mapstructure:"sibling_offset"`
}

// PinLayout is the host thread assignment derived from cpu-pinning params.
type PinLayout struct {
	VCPUs    []string // host cpuset per vcpu, indexed by vcpu number
	Emulator string   // empty when no cores are left below the offset
}

// Layout computes the pinning. Without SMT vcpu i runs on core offset+i. With SMT
// each physical core contributes two threads: (2p, 2p+1) when siblings are numbered
// adjacently, or (p, p+sibling_offset) when the host lists siblings in a second bank.
// The emulator gets every thread of the cores below the offset.
func (p cpuPinningParams) Layout() PinLayout {
	var l PinLayout
	for i := 0; i < p.Cores; i++ {
		core := p.Offset + i
		if !p.SMT {
			l.VCPUs = append(l.VCPUs, fmt.Sprint(core))
			continue
		}
		if p.SiblingOffset > 0 {
			l.VCPUs = append(l.VCPUs, fmt.Sprint(core), fmt.Sprint(core+p.SiblingOffset))
		} else {
			l.VCPUs = append(l.VCPUs, fmt.Sprint(2*core), fmt.Sprint(2*core+1))
		}
	}
	if p.Offset == 0 {
		return l
	}
	switch {
	case !p.SMT:
		l.Emulator = cpuRange(0, p.Offset-1)
	case p.SiblingOffset > 0:
		l.Emulator = cpuRange(0, p.Offset-1) + "," + cpuRange(p.SiblingOffset, p.SiblingOffset+p.Offset-1)
	default:
		l.Emulator = cpuRange(0, 2*p.Offset-1)
	}
	return l
}

func cpuRange(lo, hi int) string {
	if lo == hi {
		return fmt.Sprint(lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

func resolveCPUPinning(action domain.Action, params Params) ([]domain.Part, error) {
	cputuneSel := domain.Selector{Tag: "cputune", Singleton: true}
	cputuneAnchor := domain.Anchor{Before: []string{"memory"}}
	if action == domain.ActionRemove {
		// vcpu is mandatory in a domain; only the pinning itself is removable.
		return []domain.Part{{Name: "cputune", Node: &domain.NodePart{Selector: cputuneSel, Anchor: cputuneAnchor}}}, nil
	}

	var p cpuPinningParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Cores < 1 {
		return nil, fmt.Errorf("cores must be at least 1, got %d", p.Cores)
	}
	if p.Offset < 0 || p.SiblingOffset < 0 {
		return nil, fmt.Errorf("offsets must not be negative")
	}
	if p.SiblingOffset > 0 && p.SiblingOffset < p.Offset+p.Cores {
		return nil, fmt.Errorf("sibling_offset %d overlaps the pinned cores %s", p.SiblingOffset, cpuRange(p.Offset, p.Offset+p.Cores-1))
	}

	layout := p.Layout()
	tune := libvirtxml.DomainCPUTune{}
	for vcpu, cpuset := range layout.VCPUs {
		tune.VCPUPin = append(tune.VCPUPin, libvirtxml.DomainCPUTuneVCPUPin{VCPU: uint(vcpu), CPUSet: cpuset})
	}
	if layout.Emulator != "" {
		tune.EmulatorPin = &libvirtxml.DomainCPUTuneEmulatorPin{CPUSet: layout.Emulator}
	}
	cputune, err := render("cputune", tune)
	if err != nil {
		return nil, err
	}
	vcpu, err := render("vcpu", libvirtxml.DomainVCPU{Placement: "static", Value: uint(len(layout.VCPUs))})
	if err != nil {
		return nil, err
	}

	return []domain.Part{
		{Name: "vcpu", Node: &domain.NodePart{
			Selector: domain.Selector{Tag: "vcpu", Singleton: true},
			Desired:  vcpu,
			Policy:   domain.PolicyReplaceWhole,
			Anchor:   domain.Anchor{After: []string{"memoryBacking", "currentMemory", "memory"}},
		}},
		{Name: "cputune", Node: &domain.NodePart{
			Selector: cputuneSel,
			Desired:  cputune,
			Policy:   domain.PolicyReplaceWhole,
			Anchor:   cputuneAnchor,
		}},
	}, nil
}

type memBalloonParams struct {
	Enabled bool `mapstructure:"enabled"`
}

func resolveMemBalloon(action domain.Action, params Params) ([]domain.Part, error) {
	part := &domain.NodePart{
		Selector: domain.Selector{Parent: []string{"devices"}, Tag: "memballoon", Singleton: true},
		Policy:   domain.PolicyReplaceWhole,
		Ignore:   assigned,
	}
	if action == domain.ActionApply {
		var p memBalloonParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		model := "none"
		if p.Enabled {
			model = "virtio"
		}
		node, err := render("memballoon", libvirtxml.DomainMemBalloon{Model: model})
		if err != nil {
			return nil, err
		}
		part.Desired = node
	}
	return []domain.Part{{Name: "memballoon", Node: part}}, nil
}

type hugepagesParams struct {
	PageSize uint   `mapstructure:"page_size"`
	Unit     string `mapstructure:"unit"`
}

// scaleTo converts size in unit to target, both libvirt unit names: b or bytes,
// k/KiB/M/MiB/... in powers of 1024, KB/MB/... in powers of 1000. libvirt writes
// sizes back in one fixed unit per element, so templates use that unit too or
// every verification would report drift. Sizes that do not convert exactly are
// rejected.
func scaleTo(size uint64, unit, target string) (uint64, error) {
	from, err := unitBytes(unit)
	if err != nil {
		return 0, err
	}
	to, err := unitBytes(target)
	if err != nil {
		return 0, err
	}
	if from > 0 && size > math.MaxUint64/from {
		return 0, fmt.Errorf("size %d %s overflows", size, unit)
	}
	bytes := size * from
	if bytes%to != 0 {
		return 0, fmt.Errorf("size %d %s is not a whole number of %s", size, unit, target)
	}
	return bytes / to, nil
}

func unitBytes(unit string) (uint64, error) {
	u := strings.ToLower(unit)
	switch u {
	case "b", "byte", "bytes":
		return 1, nil
	}
	if u == "" {
		return 0, fmt.Errorf("empty unit")
	}
	exp := strings.IndexByte("kmgtpe", u[0])
	if exp < 0 {
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	var base uint64
	switch u[1:] {
	case "", "ib":
		base = 1024
	case "b":
		base = 1000
	default:
		return 0, fmt.Errorf("unknown unit %q", unit)
	}
	n := uint64(1)
	for i := 0; i <= exp; i++ {
		n *= base
	}
	return n, nil
}

// resolveHugepages targets the hugepages marker inside memoryBacking, creating the
// container when needed, so unrelated backing options (memfd source, shared access)
// survive both enabling and disabling. Disabling leaves memoryBacking in place,
// possibly empty, since other tools may own it.
func resolveHugepages(action domain.Action, params Params) ([]domain.Part, error) {
	part := &domain.NodePart{
		Selector: domain.Selector{Parent: []string{"memoryBacking"}, Tag: "hugepages", Singleton: true},
		Policy:   domain.PolicyReplaceWhole,
		ParentAnchor: domain.Anchor{
			Before: []string{"vcpu", "cputune", "os"},
			After:  []string{"currentMemory", "memory"},
		},
	}
	if action == domain.ActionApply {
		var p hugepagesParams
		if err := decode(params, &p); err != nil {
			return nil, err
		}
		hp := libvirtxml.DomainMemoryHugepages{}
		if p.PageSize > 0 {
			unit := p.Unit
			if unit == "" {
				unit = "KiB"
			}
			kib, err := scaleTo(uint64(p.PageSize), unit, "KiB")
			if err != nil {
				return nil, fmt.Errorf("page_size: %w", err)
			}
			hp.Hugepages = []libvirtxml.DomainMemoryHugepage{{Size: uint(kib), Unit: "KiB"}}
		}
		node, err := render("hugepages", hp)
		if err != nil {
			return nil, err
		}
		part.Desired = node
	}
	return []domain.Part{{Name: "hugepages", Node: part}}, nil
}

type shmemParams struct {
	Name  string `mapstructure:"name"`
	Size  uint   `mapstructure:"size"`
	Unit  string `mapstructure:"unit"`
	Model string `mapstructure:"model"`
	Merge string `mapstructure:"merge"`
}

func resolveShmem(action domain.Action, params Params) ([]domain.Part, error) {
	p := shmemParams{Name: "looking-glass", Size: 32, Unit: "M", Model: "ivshmem-plain"}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, fmt.Errorf("shmem name must not be empty")
	}
	part := &domain.NodePart{
		Selector: domain.Selector{Parent: []string{"devices"}, Tag: "shmem", KeyAttr: "name", KeyValue: p.Name, Singleton: true},
		Ignore:   assigned,
	}
	if action == domain.ActionApply {
		if p.Size == 0 {
			return nil, fmt.Errorf("shmem size must be positive")
		}
		if p.Unit == "" {
			p.Unit = "M"
		}
		mib, err := scaleTo(uint64(p.Size), p.Unit, "M")
		if err != nil {
			return nil, fmt.Errorf("shmem size: %w", err)
		}
		policy, err := mergePolicy(p.Merge)
		if err != nil {
			return nil, err
		}
		node, err := render("shmem", libvirtxml.DomainShmem{
			Name:  p.Name,
			Model: &libvirtxml.DomainShmemModel{Type: p.Model},
			Size:  &libvirtxml.DomainShmemSize{Value: uint(mib), Unit: "M"},
		})
		if err != nil {
			return nil, err
		}
		part.Desired, part.Policy = node, policy
	}
	return []domain.Part{{Name: "shmem:" + p.Name, Node: part}}, nil
}

type cpuFeatureParams struct {
	Name   string `mapstructure:"name"`
	Policy string `mapstructure:"policy"`
	Merge  string `mapstructure:"merge"`
}

var featurePolicies = map[string]bool{"force": true, "require": true, "optional": true, "disable": true, "forbid": true}

func resolveCPUFeature(action domain.Action, params Params) ([]domain.Part, error) {
	p := cpuFeatureParams{Policy: "require"}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, fmt.Errorf("feature name must not be empty")
	}
	if !featurePolicies[p.Policy] {
		return nil, fmt.Errorf("unknown feature policy %q", p.Policy)
	}

	cpu, err := render("cpu", libvirtxml.DomainCPU{Mode: "host-passthrough", Check: "none"})
	if err != nil {
		return nil, err
	}
	part := &domain.NodePart{
		Selector:     domain.Selector{Parent: []string{"cpu"}, Tag: "feature", KeyAttr: "name", KeyValue: p.Name, Singleton: true},
		Parents:      []*document.Node{cpu},
		ParentAnchor: domain.Anchor{Before: []string{"clock", "on_poweroff", "devices"}},
	}
	if action == domain.ActionApply {
		policy, err := mergePolicy(p.Merge)
		if err != nil {
			return nil, err
		}
		node, err := render("feature", libvirtxml.DomainCPUFeature{Policy: p.Policy, Name: p.Name})
		if err != nil {
			return nil, err
		}
		part.Desired, part.Policy = node, policy
	}
	return []domain.Part{{Name: "feature:" + p.Name, Node: part}}, nil
}

// --- boot parameter kinds ---

var (
	cpuListPattern  = regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)
	deviceIDPattern = regexp.MustCompile(`^[0-9a-f]{4}:[0-9a-f]{4}$`)
	pageSizes       = map[string]bool{"2M": true, "1G": true}
)

type isolationParams struct {
	Cores string `mapstructure:"cores"`
}

func resolveIsolation(action domain.Action, params Params) ([]domain.Part, error) {
	keys := []string{"isolcpus", "nohz_full", "rcu_nocbs"}
	if action == domain.ActionRemove {
		return tokenParts("isolation", keys, nil), nil
	}
	var p isolationParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if !cpuListPattern.MatchString(p.Cores) {
		return nil, fmt.Errorf("cores %q is not a cpu list such as 2-7 or 2,4-7", p.Cores)
	}
	tokens := make([]string, len(keys))
	for i, k := range keys {
		tokens[i] = k + "=" + p.Cores
	}
	return tokenParts("isolation", keys, tokens), nil
}

type vfioParams struct {
	IDs []string `mapstructure:"ids"`
}

func resolveVFIOBind(action domain.Action, params Params) ([]domain.Part, error) {
	keys := []string{"vfio-pci.ids"}
	if action == domain.ActionRemove {
		return tokenParts("vfio-pci.ids", keys, nil), nil
	}
	var p vfioParams
	if ids, ok := params["ids"].(string); ok {
		params = Params{"ids": strings.Split(ids, ",")}
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if len(p.IDs) == 0 {
		return nil, fmt.Errorf("at least one device id is required")
	}
	ids := make([]string, 0, len(p.IDs))
	for _, id := range p.IDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if !deviceIDPattern.MatchString(id) {
			return nil, fmt.Errorf("device id %q is not vendor:device hex", id)
		}
		ids = append(ids, id)
	}
	return tokenParts("vfio-pci.ids", keys, []string{"vfio-pci.ids=" + strings.Join(ids, ",")}), nil
}

type iommuParams struct {
	Vendor      string `mapstructure:"vendor"`
	Passthrough bool   `mapstructure:"passthrough"`
}

func resolveIOMMU(action domain.Action, params Params) ([]domain.Part, error) {
	p := iommuParams{Passthrough: true}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if action == domain.ActionRemove && p.Vendor == "" {
		return tokenParts("iommu", []string{"intel_iommu", "amd_iommu", "iommu"}, nil), nil
	}
	if p.Vendor != "intel" && p.Vendor != "amd" {
		return nil, fmt.Errorf("vendor must be intel or amd, got %q", p.Vendor)
	}
	keys := []string{p.Vendor + "_iommu"}
	tokens := []string{p.Vendor + "_iommu=on"}
	if p.Passthrough || action == domain.ActionRemove {
		keys = append(keys, "iommu")
		tokens = append(tokens, "iommu=pt")
	}
	return tokenParts("iommu", keys, tokens), nil
}

type reservationParams struct {
	Size  string `mapstructure:"size"`
	Count int    `mapstructure:"count"`
}

func resolveHugepageReservation(action domain.Action, params Params) ([]domain.Part, error) {
	keys := []string{"default_hugepagesz", "hugepagesz", "hugepages"}
	if action == domain.ActionRemove {
		return tokenParts("hugepage-reservation", keys, nil), nil
	}
	p := reservationParams{Size: "1G"}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if !pageSizes[p.Size] {
		return nil, fmt.Errorf("page size must be 2M or 1G, got %q", p.Size)
	}
	if p.Count < 1 {
		return nil, fmt.Errorf("count must be at least 1")
	}
	return tokenParts("hugepage-reservation", keys, []string{
		"default_hugepagesz=" + p.Size,
		"hugepagesz=" + p.Size,
		fmt.Sprintf("hugepages=%d", p.Count),
	}), nil
}

func tokenParts(name string, keys, tokens []string) []domain.Part {
	return []domain.Part{{Name: name, Token: &domain.TokenPart{
		Keys:   keys,
		Tokens: tokens,
		Policy: domain.PolicyReplaceWhole,
	}}}
}
