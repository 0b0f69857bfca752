/*
Package observability provides tools for monitoring the arcflow engine.

It turns engine lifecycle hooks into Prometheus metrics and structured log
lines, and chains several hook sets into one.
*/
package observability
