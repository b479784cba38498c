// Package causality issues role-scoped signed tokens that admit a viewer to
// the real-time channel of a single auction sale.
//
// Resolution:
//   - A TokenRequest names the requested Role, a sale reference (canonical id
//     or slug) and an optional viewer credential. The Resolver looks the sale
//     and viewer up through a DirectoryClient concurrently, fetches bidder
//     registrations only when a PARTICIPANT role is requested, and hands the
//     results to Decide.
//   - Decide never escalates. OPERATOR requires an admin viewer and fails with
//     ErrUnauthorized otherwise. PARTICIPANT falls back to OBSERVER when the
//     viewer is anonymous or not registered for the sale.
//
// Tokens:
//   - TokenService signs a ClaimSet with HS256. Claims always carry aud, role,
//     userId, saleId and bidderId; absent identifiers are encoded as JSON null.
//   - Validate accepts tokens signed with the current secret or any previous
//     secret configured through WithVerificationKeys.
//   - NewWSAuthMiddleware admits WebSocket clients holding a token. Sale ids
//     are the resources: any role reads its own sale, bidders with a bidder id
//     may place bids and operators may run the sale.
//
// Activity sinks:
//   - ActivitySink receives one event per resolution (granted, downgraded,
//     denied or failed). Sinks run best effort and errors are logged.
package causality
