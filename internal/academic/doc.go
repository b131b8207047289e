// Package academic defines the shared domain model for curriculumd:
// intents, syllabi, generated artifacts (lesson plans, question sets,
// evaluations), and the enums they are built from.
//
// Types in this package are plain data. They carry no behavior beyond
// structural validation helpers; all cross-stage logic lives in the
// compliance, metrics, and workflow packages.
package academic
