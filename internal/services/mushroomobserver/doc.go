// Package mushroomobserver talks to the Mushroom Observer API2 on behalf of
// reviewers.
//
// Client wraps the handful of endpoints the review workflow needs: reading
// observations and field slips for reconciliation, uploading images,
// creating observations, attaching images, appending notes, creating field
// slips and assigning observations to a project. Every call waits on a
// shared rate limiter so a burst of submissions cannot flood the upstream
// service. Pool hands out one Client per API key so reviewers upload under
// their own accounts.
//
// Responses are classified into the services error markers: missing
// resources match services.ErrNotFound, everything else matches
// services.ErrExternal, with ErrAuthentication and ErrConflict available for
// finer checks.
package mushroomobserver
