// Package auth implements the PKCE login flow against the Spotify accounts service.
//
// # PKCE
//
// [GenerateVerifier], [DeriveChallenge] and [BuildAuthorizationURL] are pure functions apart from the randomness source.
// The client id of a public client is not secret, so no client secret is ever sent.
//
// # Code Delivery
//
// The authorization code arrives at the loopback callback receiver, which runs independently of the login that is waiting for it.
// [Mailbox] is the single-slot, read-once rendezvous between the two.
//
// [Bridge] resolves a pending login exactly once. Three producers race to complete it:
//   - push: the receiver calls [Bridge.Notify] when it runs in the same process
//   - pull: [HTTPCodeSource] polls the receiver's /get-pending-code endpoint
//   - buffer: the in-process [Mailbox] is polled directly on a faster interval
//
// The first offer wins. Offers are only accepted while a login is awaiting and no session exists; late offers are dropped.
//
// # Token Lifecycle
//
// [TokenManager] exchanges a code and verifier for a session with an absolute expiry and persists it.
// Expired sessions load as nil and are never refreshed; the refresh token is stored but unused.
// Provider rejections surface as [*AuthorizationError], transport failures as [shared.ErrAPIRequest].
package auth
