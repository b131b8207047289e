// Package rules loads the read-only academic rule tables: Bloom taxonomy
// verbs, exam patterns, default Bloom distributions, and rubric criteria.
//
// Tables are loaded once at process start and treated as immutable
// configuration. Missing or empty files fall back to the built-in
// defaults rather than failing startup.
package rules
