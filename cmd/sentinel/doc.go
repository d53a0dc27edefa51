// Command sentinel runs the CNII Sentinel road-construction risk sweep.
//
//	sentinel serve                  HTTP API plus the optional scheduler
//	sentinel sweep [--extra-zone]   one sweep, report printed as JSON
//	sentinel migrate                apply the Postgres schema
package main
