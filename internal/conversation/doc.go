// Package conversation models the turns of a grounded chat and the bounded
// window of recent turns handed to a generation provider.
package conversation
