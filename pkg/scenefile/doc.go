// Package scenefile loads scene definitions written in HCL.
//
// A file holds one or more scene blocks:
//
//	scene "overview" {
//	  time_range {
//	    from     = "now-6h"
//	    to       = "now"
//	    timezone = "utc"
//	  }
//
//	  variable "region" {
//	    type        = "custom"
//	    query       = "Europe : eu, United States : us"
//	    include_all = true
//	  }
//
//	  variable "host" {
//	    type   = "query"
//	    engine = "expr"
//	    query  = "csv(\"$${region}-1, $${region}-2\")"
//	    sort   = "alpha_asc"
//	  }
//	}
//
// HCL evaluates "${...}" inside strings, so variable references in braces are
// written "$${name}"; "$name" and "[[name]]" need no escaping.
package scenefile
