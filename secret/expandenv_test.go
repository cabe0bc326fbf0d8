package secret

import (
	"errors"
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("PARAMCACHE_REGION", "eu-west-1")

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${PARAMCACHE_REGION}", "eu-west-1"},
		{"$PARAMCACHE_REGION/x", "eu-west-1/x"},
		{"$$${PARAMCACHE_REGION}", "$eu-west-1"},
		{"cost: $$5", "cost: $5"},
	}
	for _, tc := range tests {
		got, err := ExpandEnvStrict(tc.in)
		if err != nil {
			t.Fatalf("ExpandEnvStrict(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ExpandEnvStrict(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExpandEnvStrict_MissingVarsListed(t *testing.T) {
	_, err := ExpandEnvStrict("${PARAMCACHE_ZZ_UNSET} ${PARAMCACHE_AA_UNSET}")
	if !errors.Is(err, ErrMissingEnv) {
		t.Fatalf("error = %v, want ErrMissingEnv", err)
	}
	if !strings.Contains(err.Error(), "PARAMCACHE_AA_UNSET, PARAMCACHE_ZZ_UNSET") {
		t.Errorf("error = %q, want sorted variable names", err.Error())
	}
}
