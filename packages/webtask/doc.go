// Package webtask provides a fluent asynchronous HTTP task engine.
//
// A Task couples one HTTP exchange (fetch, download, or upload) to a
// serial, initially-paused handler pipeline. Handlers registered before
// dispatch run in registration order once the exchange has completed,
// so they always observe a fully-populated result exactly once. Callers
// may block until completion with ResumeAndWait, and authentication
// challenges raised mid-exchange are routed back to the owning Task
// with a bounded retry budget.
package webtask
