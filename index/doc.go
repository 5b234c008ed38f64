// Package index implements duplicate-sorted indices over kvstore tables:
// typed keys and values via byte converters, idempotent entry management,
// and ordered range queries with the four boundary operators (GT, GTE, LT,
// LTE) served by one unified cursor-positioning algorithm.
package index
