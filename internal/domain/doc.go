// Package domain models the two datasets handled by twdata: Taiwan integrated
// circuit export statistics and Taiwan earthquake catalogs.
//
// # Export Statistics
//
// Raw export rows come from two places:
//
//	UN Comtrade downloads  ("Period", "Reporter", "Trade Value (US$)")
//	Ministry of Finance    ("Year", "Country", "HS Code", "Description", "Export Value (USD)")
//
// HS code 8542 is the Harmonized System heading for electronic integrated
// circuits. Country names in the ministry files are in Traditional Chinese and
// are mapped to English through a JSON or YAML mapping file. Names missing
// from the mapping fall into the "Others" bucket.
//
// Values are US dollars. Charts divide by 1e9 and label the axis in billions.
//
// # Earthquake Catalogs
//
// Catalog JSON arrives in one of two shapes:
//
//	CWA open data   cwaopendata.Dataset.Catalog.EarthquakeInfo[]
//	GDMS catalog    {"header": [...], "body": [[...], ...] | [{...}, ...]}
//
// Both are reduced to [Quake]: origin time, epicentre latitude/longitude,
// focal depth in km and local magnitude. Depth and magnitude are optional and
// stay nil when the source omits them or they cannot be parsed.
//
// Timestamps carry no zone in either source and are kept as wall-clock times
// in UTC so formatting round-trips the original digits.
//
// # Bounding Boxes
//
// Points outside a fixed rectangle around Taiwan are discarded:
//
//	TaiwanBounds           lat 20–27,   lon 118–124
//	TaiwanNearshoreBounds  lat 20–26.5, lon 118–123.8
//
// The nearshore box keeps the older map variant off the Pacific and the
// mainland coast. Both boxes are inclusive on every edge.
//
// # ID Generation
//
// Quake IDs are deterministic SHA-256 hashes of time|lat|lon|mag so that
// republishing the same catalog produces the same Kafka keys. See [Quake.ID].
package domain
