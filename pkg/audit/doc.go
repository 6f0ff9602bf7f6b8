// Package audit provides the append-only record of every evaluation,
// dispatch, rejection, and rollback the engine performs.
//
// Events are immutable once appended: the Store interface deliberately
// exposes no update or delete operations (compliance requirement), and
// queries hand out copies. The log feeds two consumers - external
// observability via GET /events, and the rollback monitor, which derives
// per-policy action success rates from recent dispatch events.
//
// Two backends are provided: an in-memory ring for tests and ephemeral
// runs, and a SQLite store (WAL mode) for durable deployments.
package audit
