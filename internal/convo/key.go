// Package convo canonicalizes a pair of user ids into one conversation
// key so that both parties address the same logical conversation no
// matter who initiates.
package convo

// Key returns the canonical key for the conversation between a and b.
// It is order-independent: Key(a, b) == Key(b, a).
func Key(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
