/*
Package vmtune brings kernel boot parameters and virtual machine domain descriptors
into a declared state.

A change is described as a fragment: a named kind (cpu-pinning, memballoon,
isolation, vfio-bind...) plus params. The engine resolves the fragment, compares it
with the current document, and when they differ runs one transaction:

	Queried -> BackedUp -> Mutated -> Applied -> Verified -> Committed

Any failure after the backup restores the original text and checks the target reads
it back byte for byte (RolledBack). If even that fails the transaction ends in
RollbackFailed and the backup is left for the operator to restore.

# Architecture

Documents are edited losslessly: bytes outside the edited region are preserved, so
comments, quoting and indentation survive. Targets (the libvirt daemon, virsh, a
boot parameter file plus its regenerate command) sit behind ports.Target; backups,
the result journal and cross-process locks are ports as well, with file, SQLite and
Redis adapters.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/vmtune"
		"github.com/aretw0/vmtune/pkg/adapters/libvirt"
		"github.com/aretw0/vmtune/pkg/registry"
	)

	func main() {
		eng, err := vmtune.New("/var/lib/vmtune/backups")
		if err != nil {
			log.Fatal(err)
		}

		res, err := eng.Apply(context.Background(), libvirt.New("win11"), "cpu-pinning",
			registry.Params{"cores": 6, "smt": true, "offset": 1})
		if err != nil {
			log.Fatalf("%s: %v", res.Outcome, err)
		}
		log.Println(res.Outcome)
	}
*/
package vmtune
