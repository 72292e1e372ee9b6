// Package http provides HTTP handlers and middleware for the reservation API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. The
//     token is returned in the body, the `X-Session-Token` header and a
//     `session_token` cookie.
//   - PUT /sessions/current: rotates the current session token. DELETE
//     /sessions/current revokes it and clears the cookie.
//   - GET /users, POST /users, GET /users/{id}, PUT /users/{id}: administrator
//     controlled user management endpoints exchanging the `userDTO` payload
//     defined in user_handler.go.
//   - GET /rooms, POST /rooms, GET /rooms/{id}, PUT /rooms/{id}: room catalog
//     endpoints exchanging the `roomDTO` payload defined in room_handler.go.
//     Listing is available to any authenticated principal while mutations
//     require admin privileges.
//   - GET /reservations, POST /reservations: list (with recurring occurrences
//     expanded) and create reservations. A creation blocked by a conflict
//     returns 409 with the reason and, for Big Events, the full list of
//     conflicting meetings.
//   - POST /reservations/availability: non-binding availability probe.
//   - PUT /reservations/{id}/status: admin approval or rejection.
//   - DELETE /reservations/{id}: cancels a reservation (owner or admin),
//     releasing Big Event lockouts and cascading combined-room children.
//   - DELETE /reservations/{id}/occurrences/{date}: cancels one occurrence of
//     a weekly recurring reservation.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
