// Package credential manages short-lived cloud broker credentials.
//
// The cloud broker and command APIs only accept temporary STS-style
// secrets issued by a credential authority through a role-assumption
// exchange. This package owns that lifecycle:
//
//   - Token returns the cached credential while it is comfortably inside
//     its validity window (expiry minus a 5 minute margin), and performs
//     exactly one authority exchange otherwise.
//   - Concurrent callers during a refresh join the in-flight exchange via
//     singleflight rather than triggering duplicate requests.
//   - Credentials are immutable; a refresh supersedes, never mutates.
//
// An expired credential is never handed out: a caller either gets a fresh
// one or an error. ErrNoIdentity means no user is signed in and is not
// retried; ErrExchangeFailed is transient and retried on the next access.
package credential
