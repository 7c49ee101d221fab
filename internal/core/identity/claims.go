package identity

// Claims is the set of FBRef display names already assigned during one
// reconciliation run. It is threaded explicitly through every step so that
// no two FPL players receive the same FBRef name.
type Claims struct {
	names map[string]bool
}

func NewClaims() *Claims {
	return &Claims{names: make(map[string]bool)}
}

func (c *Claims) Claim(name string) {
	if name != "" {
		c.names[name] = true
	}
}

func (c *Claims) Claimed(name string) bool { return c.names[name] }

func (c *Claims) Len() int { return len(c.names) }

// Unclaimed filters names, preserving order and dropping repeats.
func (c *Claims) Unclaimed(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if c.names[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
