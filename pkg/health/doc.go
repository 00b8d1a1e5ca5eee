/*
Package health provides small, composable reachability checks: HTTP, TCP
and Exec. The scaler's updater uses the TCP checker to probe a freshly
launched node for SSH reachability before attempting to run commands on
it; the HTTP and Exec checkers are provided for the same family of use
(e.g. a provider implementation probing a cloud load balancer or running
a local diagnostic) without pulling in node-specific semantics.

All three implement the same Checker interface:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

Result carries Healthy, a human-readable Message, and timing
information; callers needing failure-streak hysteresis before acting
build it on top of Status.
*/
package health
