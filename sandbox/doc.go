// Package sandbox defines the interface to the isolated workspace a scan
// runs its tools in, plus the HTTP client for the workspace's tool server.
//
// The container runtime behind the interface is external. The core needs
// three operations from it: create a workspace, resolve a URL for a port
// inside it, and destroy it. Tool execution goes over HTTPS to the
// workspace's tool server with bearer authentication.
package sandbox
