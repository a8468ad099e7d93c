// Package planner defines the core types, interfaces, and error taxonomy of
// the crawl planning pipeline: date-bucketed sitemap ranges, robots rule
// summaries, enumeration results, and render-mode classifications shared by
// the fetcher, enumerator, cache, and classifier subsystems.
package planner
