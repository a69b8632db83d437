// Package boc provides the Bank of China foreign exchange quotation provider.
//
// Source: "BOC"
// URL: https://www.boc.cn/sourcedb/whpj/
//
// The page publishes a single table of quotations against CNY, one row per
// currency. Columns, in order:
//
//	name | buying | cash buying | selling | cash selling | middle | date | time
//
// Rates are expressed per 100 units of the foreign currency. Cells that are
// blank or "-" are recorded as absent, never as zero.
//
// The publication time is the joined date and time cells, in the
// "2006.01.02 15:04:05" layout, China Standard Time.
//
// Only currencies present in the configured name mapping are tracked, the
// rest of the table is ignored.
package boc
