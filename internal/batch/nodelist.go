package batch

import (
	"os/user"
	"regexp"
	"strconv"
	"strings"
)

// nodeRangeRe matches one compressed node-list element: a node-name prefix
// optionally followed by a bracketed range group, e.g. "node[0-3,7]".
var nodeRangeRe = regexp.MustCompile(`([^\[,]+)(\[[^\[]+\])?`)

// ExpandNodeList expands compressed scheduler node-list syntax into a flat
// ordered sequence of node names. A numeric range "a-b" expands to
// a, a+1, ..., b-1: the upper bound is exclusive. Bare comma-separated
// names pass through unchanged.
func ExpandNodeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if !nodeRangeRe.MatchString(raw) {
		return strings.Split(raw, ",")
	}

	var nodes []string
	for _, m := range nodeRangeRe.FindAllStringSubmatch(raw, -1) {
		name, group := m[1], m[2]
		if group == "" {
			nodes = append(nodes, name)
			continue
		}
		group = strings.Trim(group, "[]")
		for _, part := range strings.Split(group, ",") {
			if start, end, ok := splitRange(part); ok {
				for i := start; i < end; i++ {
					nodes = append(nodes, name+strconv.Itoa(i))
				}
			} else {
				nodes = append(nodes, name+part)
			}
		}
	}
	return nodes
}

func splitRange(part string) (int, int, bool) {
	dash := strings.Index(part, "-")
	if dash < 0 {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(part[:dash])
	end, err2 := strconv.Atoi(part[dash+1:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

// resolveUser converts a numeric user id into a user name. Non-numeric
// values and lookup failures pass through unchanged.
func resolveUser(raw string) string {
	if raw == "" || !isDigits(raw) {
		return raw
	}
	if u, err := user.LookupId(raw); err == nil {
		return u.Username
	}
	return raw
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// optInt coerces an optional numeric field. Empty and placeholder values
// ("N/A") become nil; anything else must parse.
func optInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

// optExitCode coerces scheduler exit codes, tolerating the "code:signal"
// form used by sacct; the component after the last colon wins.
func optExitCode(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "n/a") {
		return nil
	}
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		raw = raw[idx+1:]
	}
	return optInt(raw)
}
