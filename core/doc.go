// Package core implements the actor runtime: cells and their lifecycle,
// the supervision tree rooted at the user and system scopes, path
// resolution, watch notifications, ask and inbox bridging.
//
// Every actor is identified by an address of the form
// actor://<system>/<scope>/<name>/<name>... and reached through a Ref.
// Messages are plain Go values; PoisonPill, Terminated and DeadLetter are
// the only payloads the runtime itself interprets.
//
// Handlers for one actor never run concurrently. An error or panic escaping
// a handler stops that actor and nothing else.
package core
