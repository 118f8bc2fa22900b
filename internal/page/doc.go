// Package page owns the HTML document that browsers mirror.
//
// A [Document] is a parsed node tree with one container element per server
// id. All reads and writes go through the document lock, so a container is
// only ever observed fully rendered or untouched.
//
// Every change made through [Document.Mutate] is published to subscribers
// as a [Fragment] holding the container's new outer HTML. Subscribers
// receive fragments on buffered channels with non-blocking sends: a slow
// subscriber misses updates rather than stalling a render.
package page
