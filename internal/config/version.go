package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLanguageVersion parses "7.3", "8", "8.0" or "latest".
func ParseLanguageVersion(s string) (LanguageVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "latest" {
		return LanguageVersionLatest, nil
	}
	major, minor, hasMinor := strings.Cut(s, ".")
	maj, err := strconv.Atoi(major)
	if err != nil || maj <= 0 {
		return 0, fmt.Errorf("invalid language version %q", s)
	}
	mn := 0
	if hasMinor {
		mn, err = strconv.Atoi(minor)
		if err != nil || mn < 0 || mn > 9 {
			return 0, fmt.Errorf("invalid language version %q", s)
		}
	}
	return LanguageVersion(maj*10 + mn), nil
}

func (v LanguageVersion) String() string {
	if v == LanguageVersionLatest {
		return "latest"
	}
	if v%10 == 0 {
		return strconv.Itoa(int(v) / 10)
	}
	return fmt.Sprintf("%d.%d", int(v)/10, int(v)%10)
}
