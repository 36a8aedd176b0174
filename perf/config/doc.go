// Package config provides configuration types and parsing for load runs.
//
// This package defines the YAML/JSON schema for a run and turns it into a
// perf.RunConfig, compiling declarative checks into predicates.
//
// # Configuration Schema
//
//	name: "id generator stress"
//	vus: 1000
//	duration: 1m
//	gracePeriod: 30s
//
//	request:
//	  method: GET
//	  url: "http://127.0.0.1:8080/id?biztag=test"
//	  timeout: 5s
//
//	checks:
//	  - type: status
//	    condition: eq
//	    value: "200"
//	  - type: body
//	    condition: contains
//	    value: "succ"
//	  - name: "id is positive"
//	    type: jsonpath
//	    path: "$.id"
//	    condition: exists
//
//	thresholds:
//	  http_req_duration:
//	    - "p95 < 500ms"
//	  checks:
//	    - "rate > 0.99"
//
//	settings:
//	  maxConnsPerHost: 1000
//	  userAgent: "vuload/1.0"
//
// # Loading Configuration
//
//	cfg, err := config.LoadConfig("idgen.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	config.ApplyDefaults(cfg)
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
//	runCfg, err := cfg.ToRunConfig()
//
// # Check Types
//
//   - status: eq, ne, lt, lte, gt, gte, in (comma separated codes)
//   - body: contains, not_contains, eq, matches
//   - header: exists, eq, contains, matches (path is the header name)
//   - jsonpath: exists, eq, ne, contains, matches (path is the JSONPath)
//   - schema: value is a JSON Schema the body must satisfy
//   - duration: lt, lte, gt, gte against the response time
package config
