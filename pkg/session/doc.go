/*
Package session serializes reconciliations per target.

At most one transaction may be in flight for a given target document. The Manager
holds a reference-counted mutex per target inside the process and, when configured
with a ports.DistributedLocker, a lease shared by every process that can reach the
same lock service. Different targets never block each other.
*/
package session
