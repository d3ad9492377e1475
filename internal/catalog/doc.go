// Package catalog serves autocomplete lookups over the external catalog
// exports: locations from all_locations.json, taxon names from
// all_names.json, and foray dates from forays.csv. Every file is optional;
// a missing export simply yields no matches.
package catalog
