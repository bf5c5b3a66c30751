// Package account persists portal accounts for the auth engine.
//
// GormStore is the production store (gorm on the postgres driver, sharing the
// service's pgx pool). MemoryStore backs tests and the load-test tool.
// Both implement portalauth.AccountStore.
package account
