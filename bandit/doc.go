/*
Package bandit implements a LinUCB contextual bandit router.

Each arm keeps a per-arm ridge-regression design matrix A (initialized to
λI, λ>0) and response vector b. Every feedback update adds a rank-1 PSD
term f·fᵀ to A, so A stays symmetric positive-definite and invertible for
all reachable histories — there is no singular-matrix failure mode.

The router is process-wide shared mutable state: all sessions route
through the same per-arm matrices. Choose/RecordFeedback touching the
same arm are serialized by a per-arm mutex; the pending-decision map is
protected independently and supports TTL expiry so decisions whose
feedback never arrives do not accumulate.

A hybrid variant with shared cross-arm parameters is a declared extension
point with no specified joint-regression math; constructing one is
rejected with ErrHybridUnsupported until a concrete formula is agreed.
*/
package bandit
