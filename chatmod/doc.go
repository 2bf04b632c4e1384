// Moderation decision engine for real-time chat groups.
//
// This package (`github.com/warden-mod/warden/chatmod`) contains the core of the warden service: normalized group activity "events" (messages, media, joins) are fanned out to a fixed pool of detectors (explicit content, flood/raid, malicious files and links, copyright), the resulting signals are aggregated under per-group policy into a single verdict, and the verdict drives an escalating enforcement state machine (warn, restrict, remove, ban) with an auditable history. Per-user and per-group behavioral state (message rates, join rates, prior violations) is tracked in-process and consulted by the detectors.
//
// See `cmd/warden` for a daemon built on this package.
package chatmod
