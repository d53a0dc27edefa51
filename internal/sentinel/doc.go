// Package sentinel defines the domain types and collaborator contracts shared
// by the sweep pipeline: zones, search results, risks, sweep results and
// persisted reports.
package sentinel
