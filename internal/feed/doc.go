// Package feed maintains the RSS 2.0 feed of discovered events.
//
// New events are prepended to the existing feed. Every publish also ages the
// existing items: the "new" category is dropped once an item is a week old and an
// "expired" category is added once its deadline has passed.
package feed
