// Package sentinel implements the account security subsystem: normalized
// OAuth identities, a revocable session registry, a brute-force lockout state
// machine, and an append-only security audit trail.
//
// Sessions:
//   - The SessionRegistry binds a user to a device/IP for a bounded lifetime.
//     Sessions are indexed by id and by owning user, expire lazily on read
//     (no background sweeps), and are revocable independently of JWT validity.
//     Revoking a session logs the user out even while their token still
//     verifies, so the registry is the source of truth for liveness.
//
// Lockout:
//   - LockoutMachine tracks failed authentication attempts per user and
//     transitions accounts between unlocked and locked states. Five failures
//     with no intervening success lock the account for thirty minutes and
//     revoke every live session. Locks carry a single reason at a time; the
//     overwrite behavior for competing lock calls is an explicit policy.
//
// Audit:
//   - Trail is an append-only log of security-relevant events. Every failed
//     login, lock, unlock, and revocation writes exactly one entry before the
//     triggering call returns. Retention is driven by an external scheduler
//     through AuditRetentionHandler, never by a timer inside the component.
//
// Identity normalization and request-time resolution live in the identity
// and middleware/authware packages respectively.
package sentinel
