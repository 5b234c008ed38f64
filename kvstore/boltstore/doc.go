// Package boltstore implements the kvstore contract on bbolt.
//
// Each table is a top-level bucket; each key is a nested bucket whose keys
// are the duplicate values. bbolt's on-disk order is fixed, so tables with
// custom comparators are rejected. bbolt requires non-empty keys, which
// makes empty index keys and empty duplicate values unsupported here.
package boltstore
