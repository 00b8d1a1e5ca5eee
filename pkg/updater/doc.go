/*
Package updater implements the per-node bootstrap state machine: it
takes a freshly launched, blank node from uninitialized through
waiting-for-ssh, syncing-files and setting-up to up-to-date (or
update-failed), writing tags back to the provider only after each stage
actually succeeds.

Idempotence is load-bearing: a second Run against a node whose
runtime-hash tag already matches the cluster's current runtime hash
performs zero remote commands and returns immediately.
*/
package updater
