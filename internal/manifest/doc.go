// Package manifest loads HCL files declaring states, computes, commands and
// remote clients, and installs them into an engine.
//
//	state "counter" { default = 0 }
//
//	compute "doubled" {
//	  states = ["counter"]
//	  value  = counter * 2
//	}
//
//	compute "remote" {
//	  states = ["counter"]
//	  fetch {
//	    client = "main"
//	    event  = "lookup"
//	    reply  = "lookup_result"
//	    data   = { n = counter }
//	  }
//	}
//
//	command "report" {
//	  states   = ["counter"]
//	  computes = ["doubled"]
//	  handler  = "print"
//	}
//
//	client "socketio" "main" { url = "http://localhost:3000" }
//
// Values are cty.Values. Expressions see every declared dependency as a
// variable of the same name. A compute sets exactly one of value, handler or
// fetch.
package manifest
