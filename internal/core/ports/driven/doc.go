// Package driven defines the outbound ports of the buildlens core: the
// model backend, the cost ledger, the run archive, chat delivery and SCM
// enrichment. Adapters under internal/adapters/driven implement them.
package driven
