// Package serve runs the scan control gRPC server.
//
// The server carries the standard gRPC health service so orchestration
// layers (container schedulers, load balancers, the CLI) can probe
// whether the scanner process is up and whether a given scan is still
// running. Scans are exposed as per-scan health service names under
// "swarm.scan.<id>".
package serve
