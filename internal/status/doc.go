// Package status decodes the payloads served by the upstream status endpoint.
//
// A payload is a JSON object tagged by its top-level key:
//
//	{"ServerUp": {"server_info": {...}, "elapsed": {...}, "image": "x.jpg", "players": [...]}}
//	{"ServerDown": {"since": {...}}}
//
// Anything else decodes to [VariantUnknown] so the caller can log it. The
// main entry point is [Parse].
package status
