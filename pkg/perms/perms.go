// Package perms implements permission rule arrays.
//
// A rule is a domain name prefixed with "+" (allow) or "-" (deny), for
// example "+ht.guild.config.*" or "-ht.guild.config.voice". A trailing
// "*" matches every permission below that domain. When several rules match
// a permission, the most specific one decides.
package perms

import "strings"

type PermsArray []string

// Has returns true if the rules in p allow the permission dn.
func (p PermsArray) Has(dn string) bool {
	dn = strings.ToLower(dn)

	allowed := false
	best := -1

	for _, rule := range p {
		allow, pattern, ok := split(rule)
		if !ok {
			continue
		}

		w, ok := match(pattern, dn)
		if !ok || w < best {
			continue
		}

		best = w
		allowed = allow
	}

	return allowed
}

// Merge returns p extended by newPerms. A rule in newPerms whose domain
// is already present in p replaces the existing rule only when override
// is set.
func (p PermsArray) Merge(newPerms []string, override bool) PermsArray {
	res := make(PermsArray, len(p), len(p)+len(newPerms))
	copy(res, p)

	for _, np := range newPerms {
		_, npDn, ok := split(np)
		if !ok {
			continue
		}

		found := false
		for i, rule := range res {
			_, dn, _ := split(rule)
			if dn != npDn {
				continue
			}
			found = true
			if override {
				res[i] = np
			}
			break
		}

		if !found {
			res = append(res, np)
		}
	}

	return res
}

func split(rule string) (allow bool, dn string, ok bool) {
	if len(rule) < 2 {
		return
	}

	switch rule[0] {
	case '+':
		allow = true
	case '-':
	default:
		return
	}

	return allow, strings.ToLower(rule[1:]), true
}

// match reports whether pattern covers dn together with a weight
// which is higher for more specific patterns.
func match(pattern, dn string) (int, bool) {
	depth := strings.Count(pattern, ".") + 1

	if pattern == dn {
		return depth*2 + 1, true
	}

	if pattern == "*" {
		return 0, true
	}

	if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(dn, pattern[:len(pattern)-1]) {
		return depth * 2, true
	}

	return 0, false
}
