// Package bookhive is a client for the BookHive library catalog API. It
// bundles a bearer-token gateway with the book and rental lifecycle rules
// that sit on top of it.
//
// Sessions:
//   - Session owns the persisted credential. Begin stores the token returned
//     by login, End clears it. Client reads the token from its Session on
//     every request, so logging out in one place is seen everywhere.
//   - DecodeIdentity reads the username and email embedded in the token for
//     display. The signature is never checked; do not use the result for
//     authorization.
//
// Lifecycle:
//   - Manager issues the catalog calls. RentBook creates a rental and then
//     moves the book to Borrowed with a second request. The two calls are not
//     atomic; a failure in the second one returns a RentalInconsistent error
//     unless WithRentCompensation is enabled.
//   - BookStateMachine is an opt-in guard for manual status changes with
//     hooks and activity events.
//
// Activity sinks:
//   - ActivitySink receives login, book and rental events. Sinks run
//     best-effort (errors are logged) so you can forward them to a queue
//     without blocking catalog calls.
package bookhive
