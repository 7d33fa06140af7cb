// Package feed defines regwatch's feed domain: sources, tiered items, the
// keyword classifier, and the filter/rank pipeline that orders items for
// display.
package feed
