// Package repo holds the typed stores over gorm. Lookups that miss
// return (nil, nil): a missing row is ordinary control flow for the
// reconcilers, not a failure.
package repo
