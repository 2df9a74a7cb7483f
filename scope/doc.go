// Package scope provides structured-concurrency primitives for Go.
//
// A Scope owns the tasks it spawns, provides a join point (Wait), and
// propagates cancellation and errors predictably according to a Policy.
// Forks come in several flavors — Go, GoUser, GoUnsupervised, GoError,
// GoUserError, GoCancellable — distinguished by whether they are awaited
// by the scope automatically and whether their failures are reported as
// plain errors or as application-error values (see Either).
//
// A scope ends either because its body (everything up to the call to
// Wait) has completed and every user fork it started has also completed,
// or, under FailFast, because some fork recorded a failure. Either way,
// scope end cancels every task still running under it, and Wait then
// waits for them to return. A scope that started no user fork does not
// end when its body completes: Wait waits for its daemon forks to return
// on their own. Under Supervisor a failure is recorded but does not end
// the scope.
package scope
