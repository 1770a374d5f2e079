/*
Package ports defines the driven ports (interfaces) of the vmtune engine.

These interfaces decouple the reconciliation core from the systems it talks to, so the
same transaction logic drives a libvirt daemon, a virsh binary, a boot parameter file
or an in-memory fake.

# Key Interfaces

  - Target: A document living in an external system (Export/Define).
  - BackupStore: Persists the raw-text snapshots taken before mutation.
  - DistributedLocker: Serializes transactions on one target across processes.
  - Journal: Append-only record of reconciliation results.
*/
package ports
